package response

import (
	"fmt"
	"io"
	"time"

	"github.com/nhdewitt/reflect-server/internal/headers"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

func WriteStatusLine(w io.Writer, statusCode StatusCode) error {
	_, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", int(statusCode), statusCode.Reason())
	return err
}

// GetDefaultHeaders returns the headers every response carries.
func GetDefaultHeaders(contentLen int) *headers.Headers {
	h := headers.NewHeaders()
	h.Replace("Content-Length", fmt.Sprintf("%d", contentLen))
	h.Replace("Connection", "close")
	h.Replace("Date", time.Now().UTC().Format(dateFormat))

	return h
}

func WriteHeaders(w io.Writer, h *headers.Headers) error {
	caser := cases.Title(language.English)
	for k, v := range h.All() {
		line := caser.String(k) + ": " + v
		_, err := w.Write([]byte(line + "\r\n"))
		if err != nil {
			return fmt.Errorf("error writing header: %v", err)
		}
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}
