package inbox

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/colonyops/inbox/internal/core/notify"
)

//go:embed notification.schema.json
var notificationSchema []byte

const notificationSchemaURL = "https://colonyops.dev/inbox/notification.schema.json"

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(notificationSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(notificationSchemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(notificationSchemaURL)
})

// DecodeNotification turns one push payload into a Notification. Any failure
// is a *notify.ParseError.
func DecodeNotification(payload []byte) (notify.Notification, error) {
	schema, err := compileSchema()
	if err != nil {
		return notify.Notification{}, notify.NewParseError(payload, err)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return notify.Notification{}, notify.NewParseError(payload, err)
	}
	if err := schema.Validate(inst); err != nil {
		return notify.Notification{}, notify.NewParseError(payload, err)
	}

	var n notify.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return notify.Notification{}, notify.NewParseError(payload, err)
	}
	return n, nil
}
