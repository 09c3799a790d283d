package orderapi

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/tripcart/internal/domain/order"
)

// encodeRequest writes {tripId, travelerCount, contactInfo}.
func encodeRequest(e *jx.Encoder, req order.Request) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("tripId", func(e *jx.Encoder) { e.Str(req.TripID) })
		e.Field("travelerCount", func(e *jx.Encoder) { e.Int(req.TravelerCount) })
		e.Field("contactInfo", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("fullName", func(e *jx.Encoder) { e.Str(req.Contact.FullName) })
				e.Field("email", func(e *jx.Encoder) { e.Str(req.Contact.Email) })
			})
		})
	})
}

// decodeResponse reads the {statusCode, payload|errorMessage} envelope.
// Unknown fields are skipped. statusCode is required.
func decodeResponse(data []byte) (*order.Response, error) {
	var (
		resp    order.Response
		hasCode bool
	)
	d := jx.DecodeBytes(data)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "statusCode":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "statusCode")
			}
			resp.StatusCode = v
			hasCode = true
		case "payload":
			raw, err := d.Raw()
			if err != nil {
				return errors.Wrap(err, "payload")
			}
			if raw.Type() != jx.Null {
				resp.Payload = append([]byte(nil), raw...)
			}
		case "errorMessage":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, err := d.Str()
			if err != nil {
				return errors.Wrap(err, "errorMessage")
			}
			resp.ErrorMessage = v
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode envelope")
	}
	if !hasCode {
		return nil, errors.New("decode envelope: missing statusCode")
	}
	return &resp, nil
}
