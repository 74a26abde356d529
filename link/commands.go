package link

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"flashmon/telemetry"
)

// SendDebug writes a "[debug]@<payload>" command frame to the port.
// The device echoes debug frames back over the same link.
func SendDebug(w io.Writer, payload string) error {
	return writeFrame(w, telemetry.TagDebug+payload)
}

// SendParams writes a "[param]@key:val,..." command frame carrying runtime
// parameters for the firmware. Pair order is preserved on the wire.
func SendParams(w io.Writer, params []telemetry.Sample) error {
	if len(params) == 0 {
		return fmt.Errorf("param frame requires at least one pair")
	}

	var sb strings.Builder
	sb.WriteString(telemetry.TagParam)
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Key)
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatFloat(p.Value, 'f', -1, 64))
	}
	return writeFrame(w, sb.String())
}

func writeFrame(w io.Writer, frame string) error {
	data := []byte(frame + "\n")
	n, err := w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(data))
	}
	return nil
}
