package api

import (
	"bytes"
	"encoding/json"

	"github.com/okian/lifeboat/internal/domain/schema"
)

type batchRequest struct {
	Passengers []json.RawMessage `json:"passengers"`
}

// decodePassenger parses one passenger object. Missing and wrongly typed
// fields come back as violations in record field order; input that is not a
// JSON object comes back as err. Each field is decoded on its own so a type
// mismatch is never read as the zero value.
func decodePassenger(raw []byte) (schema.PassengerRecord, []schema.Violation, error) {
	var present map[string]json.RawMessage
	if err := json.Unmarshal(raw, &present); err != nil {
		return schema.PassengerRecord{}, nil, err
	}

	var (
		rec        schema.PassengerRecord
		sex, port  string
		violations []schema.Violation
	)
	field := func(name string, target any, want string) {
		v, ok := present[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			violations = append(violations, schema.Violation{Field: name, Reason: "is required"})
			return
		}
		if err := json.Unmarshal(v, target); err != nil {
			violations = append(violations, schema.Violation{Field: name, Reason: "must be " + want})
		}
	}
	field("pclass", &rec.Pclass, "an integer")
	field("sex", &sex, "a string")
	field("age", &rec.Age, "a number")
	field("sibsp", &rec.SibSp, "an integer")
	field("parch", &rec.Parch, "an integer")
	field("fare", &rec.Fare, "a number")
	field("embarked", &port, "a string")
	if len(violations) > 0 {
		return schema.PassengerRecord{}, violations, nil
	}

	rec.Sex = schema.Sex(sex)
	rec.Embarked = schema.Port(port)
	return rec, nil, nil
}
