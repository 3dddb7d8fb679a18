package response

import "strconv"

type StatusCode int

const (
	StatusOK                  StatusCode = 200
	StatusCreated             StatusCode = 201
	StatusBadRequest          StatusCode = 400
	StatusNotFound            StatusCode = 404
	StatusRequestTimeout      StatusCode = 408
	StatusPayloadTooLarge     StatusCode = 413
	StatusInternalServerError StatusCode = 500
)

var reasons = map[StatusCode]string{
	StatusOK:                  "OK",
	StatusCreated:             "Created",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusRequestTimeout:      "Request Timeout",
	StatusPayloadTooLarge:     "Payload Too Large",
	StatusInternalServerError: "Internal Server Error",
}

// Reason returns the reason phrase for c, or "" for codes without one.
func (c StatusCode) Reason() string {
	return reasons[c]
}

func (c StatusCode) String() string {
	if r := c.Reason(); r != "" {
		return strconv.Itoa(int(c)) + " " + r
	}
	return strconv.Itoa(int(c))
}
