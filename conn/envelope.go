package conn

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope carries one batch in a websocket text frame. Requests set
// ContentType and Body the way an HTTP client sets the Content-Type header and
// the request body; responses echo ID and add Status.
type Envelope struct {
	ID          string `json:"id,omitempty" mapstructure:"id"`
	ContentType string `json:"content_type" mapstructure:"content_type"`
	Body        string `json:"body" mapstructure:"body"`
	Status      int    `json:"status,omitempty" mapstructure:"status"`
}

// Decodes byte slice to Envelope. Numeric ids are accepted and kept as text.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	x := bytes.TrimLeft(data, " \t\r\n")
	if len(x) == 0 || x[0] != '{' {
		return e, errors.New("envelope must be a JSON object")
	}
	fieldMap := map[string]interface{}{}
	if err := json.Unmarshal(data, &fieldMap); err != nil {
		return e, errors.Wrap(err, "decoding envelope")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &e,
	})
	if err != nil {
		return e, errors.Wrap(err, "creating envelope decoder")
	}
	if err := decoder.Decode(fieldMap); err != nil {
		return e, errors.Wrap(err, "decoding envelope")
	}
	return e, nil
}

// Encodes Envelope to byte slice.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}
	return data, nil
}
