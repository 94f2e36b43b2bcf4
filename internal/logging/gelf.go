package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// DialGraylog opens a GELF writer to the given Graylog address.
// The returned writer can be handed to SlogManager.Setup.
func DialGraylog(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("error connecting to graylog at %s: %v", address, err)
	}
	return w, nil
}
