package simulator

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDigitalOutputs(t *testing.T) {
	Convey("Given a fresh controller", t, func() {
		ctrl := NewController(DefaultConfig())

		Convey("all outputs start low", func() {
			for bit := 0; bit < 16; bit++ {
				v, err := ctrl.DigitalOutput(bit)
				So(err, ShouldBeNil)
				So(v, ShouldBeFalse)
			}
		})

		Convey("SB and CB toggle a single bit", func() {
			So(ctrl.Exec("SB 3"), ShouldEqual, ":")
			v, _ := ctrl.DigitalOutput(3)
			So(v, ShouldBeTrue)
			v, _ = ctrl.DigitalOutput(2)
			So(v, ShouldBeFalse)

			So(ctrl.Exec("CB3"), ShouldEqual, ":")
			v, _ = ctrl.DigitalOutput(3)
			So(v, ShouldBeFalse)
		})

		Convey("OB treats any nonzero value as high", func() {
			So(ctrl.Exec("OB 15,2"), ShouldEqual, ":")
			v, _ := ctrl.DigitalOutput(15)
			So(v, ShouldBeTrue)
			So(ctrl.Exec("OB 15,0"), ShouldEqual, ":")
			v, _ = ctrl.DigitalOutput(15)
			So(v, ShouldBeFalse)
		})

		Convey("OP writes whole banks and skips empty operands", func() {
			So(ctrl.Exec("OP 165,90"), ShouldEqual, ":")
			So(ctrl.Exec("MG _OP0"), ShouldEqual, " 165\r\n:")
			So(ctrl.Exec("MG _OP1"), ShouldEqual, " 90\r\n:")

			So(ctrl.Exec("OP ,255"), ShouldEqual, ":")
			So(ctrl.Exec("MG _OP0"), ShouldEqual, " 165\r\n:")
			So(ctrl.Exec("MG _OP1"), ShouldEqual, " 255\r\n:")
		})

		Convey("out of range bits are rejected and reported by TC", func() {
			So(ctrl.Exec("SB 16"), ShouldEqual, "?")
			So(ctrl.Exec("TC1"), ShouldEqual, " 6 Number out of range\r\n:")
			So(ctrl.Exec("TC"), ShouldEqual, " 6\r\n:")

			_, err := ctrl.DigitalOutput(16)
			So(err, ShouldEqual, ErrOutOfRange)
			_, err = ctrl.DigitalOutput(-1)
			So(err, ShouldEqual, ErrOutOfRange)
		})
	})
}

func TestLoopback(t *testing.T) {
	Convey("Bank 0 outputs drive bank 0 inputs", t, func() {
		ctrl := NewController(DefaultConfig())

		So(ctrl.Exec("OP 170"), ShouldEqual, ":")
		So(ctrl.Exec("TI 0"), ShouldEqual, " 170\r\n:")
		So(ctrl.Exec("MG @IN[1]"), ShouldEqual, " 1.0000\r\n:")
		So(ctrl.Exec("MG @IN[0]"), ShouldEqual, " 0.0000\r\n:")

		Convey("bank 1 outputs do not reach the inputs", func() {
			So(ctrl.Exec("OP ,255"), ShouldEqual, ":")
			So(ctrl.Exec("MG _TI1"), ShouldEqual, " 0\r\n:")
		})

		Convey("bank 1 inputs can be driven externally", func() {
			So(ctrl.SetDigitalInput(9, true), ShouldBeNil)
			So(ctrl.Exec("TI 1"), ShouldEqual, " 2\r\n:")
		})

		Convey("loopback inputs cannot be driven externally", func() {
			So(ctrl.SetDigitalInput(2, true), ShouldEqual, ErrDrivenInput)
		})
	})
}

func TestAnalog(t *testing.T) {
	Convey("Analog outputs", t, func() {
		ctrl := NewController(DefaultConfig())

		So(ctrl.Exec("AO 2,3.3"), ShouldEqual, ":")
		v, err := ctrl.AnalogOutput(2)
		So(err, ShouldBeNil)
		So(v, ShouldAlmostEqual, 3.3)
		So(ctrl.Exec("MG @AO[2]"), ShouldEqual, " 3.3000\r\n:")
		So(ctrl.Exec("MG @AN[2]"), ShouldEqual, " 3.3000\r\n:")

		Convey("negative voltages format with a sign", func() {
			So(ctrl.Exec("AO 0,-2.5"), ShouldEqual, ":")
			So(ctrl.Exec("MG @AO[0]"), ShouldEqual, "-2.5000\r\n:")
		})

		Convey("values outside the output range are rejected", func() {
			So(ctrl.Exec("AO 2,10.5"), ShouldEqual, "?")
			v, _ := ctrl.AnalogOutput(2)
			So(v, ShouldAlmostEqual, 3.3)
			So(ctrl.Exec("AO 8,1"), ShouldEqual, "?")
		})
	})

	Convey("Without analog loopback inputs are external", t, func() {
		config := DefaultConfig()
		config.AnalogLoopback = false
		ctrl := NewController(config)

		So(ctrl.Exec("AO 1,4"), ShouldEqual, ":")
		So(ctrl.SetAnalogInput(1, 1.5), ShouldBeNil)
		v, _ := ctrl.AnalogInput(1)
		So(v, ShouldAlmostEqual, 1.5)
	})
}

func TestCommandLines(t *testing.T) {
	Convey("Command lines", t, func() {
		ctrl := NewController(DefaultConfig())

		Convey("empty line answers with a colon", func() {
			So(ctrl.Exec(""), ShouldEqual, ":")
		})

		Convey("revision query reports the model", func() {
			So(ctrl.Exec(REVISION_QUERY), ShouldEqual, "RIO47142 Rev 1.0a\r\n:")
			So(ctrl.Exec("MG _BN"), ShouldEqual, " 12345\r\n:")
		})

		Convey("semicolons chain commands", func() {
			So(ctrl.Exec("SB 0;SB 1;MG _OP0"), ShouldEqual, " 3\r\n:")
		})

		Convey("quoted text keeps its commas and semicolons", func() {
			So(ctrl.Exec(`MG "a,b"`), ShouldEqual, "a,b\r\n:")
			So(ctrl.Exec(`MG "x;y";SB 2`), ShouldEqual, "x;y\r\n:")
			v, _ := ctrl.DigitalOutput(2)
			So(v, ShouldBeTrue)
		})

		Convey("the first error stops the line", func() {
			So(ctrl.Exec("MG 1;XX;SB 4"), ShouldEqual, " 1.0000\r\n?")
			v, _ := ctrl.DigitalOutput(4)
			So(v, ShouldBeFalse)
			So(ctrl.Exec("TC 1"), ShouldEqual, " 1 Unrecognized command\r\n:")
		})

		Convey("MG prints quoted text", func() {
			So(ctrl.Exec(`MG "hello"`), ShouldEqual, "hello\r\n:")
		})

		Convey("encoders can be written and queried", func() {
			So(ctrl.Exec("WE 1,-400"), ShouldEqual, ":")
			So(ctrl.Exec("QE 1"), ShouldEqual, "-400\r\n:")
			So(ctrl.Exec("QE"), ShouldEqual, " 0,-400\r\n:")
			So(ctrl.Exec("MG _QE1"), ShouldEqual, "-400\r\n:")
		})

		Convey("RS clears every output and the last error", func() {
			ctrl.Exec("OP 255,255;AO 3,1")
			ctrl.Exec("BOGUS")
			So(ctrl.Exec("RS"), ShouldEqual, ":")
			So(ctrl.Snapshot().DigitalOutputs[7], ShouldBeFalse)
			So(ctrl.Snapshot().AnalogOutputs[3], ShouldEqual, 0.0)
			So(ctrl.Exec("TC"), ShouldEqual, " 0\r\n:")
		})

		Convey("WT blocks for the requested time", func() {
			start := time.Now()
			So(ctrl.Exec("WT 20"), ShouldEqual, ":")
			So(time.Since(start) >= 20*time.Millisecond, ShouldBeTrue)
		})
	})
}

func TestSubscribe(t *testing.T) {
	Convey("Subscribers see the latest state after a change", t, func() {
		ctrl := NewController(DefaultConfig())
		updates, cancel := ctrl.Subscribe()
		defer cancel()

		ctrl.Exec("SB 1")
		ctrl.Exec("SB 2")

		s := <-updates
		So(s.DigitalOutputs[2], ShouldBeTrue)
		So(s.DigitalOutputs[1], ShouldBeTrue)

		Convey("commands that change nothing publish nothing", func() {
			ctrl.Exec("MG 1")
			received := false
			select {
			case <-updates:
				received = true
			default:
			}
			So(received, ShouldBeFalse)
		})
	})
}
