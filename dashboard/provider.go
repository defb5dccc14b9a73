package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/asaidimu/go-scoss/core/query"
)

// Amount is a money cell. It decodes from a formatted string such as
// "€1,000" as well as from a plain JSON number; unparseable text is zero.
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("amount: %w", err)
		}
		*a = Amount(query.Number(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(f)
	return nil
}

// Term is a text cell. A numeric cell is kept in the form it takes as a
// terms bucket, so 7 and 7.0 both read "7".
type Term string

func (t *Term) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("term: %w", err)
		}
		*t = Term(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("term: %w", err)
	}
	*t = Term(query.TermString(f))
	return nil
}

// ServiceProvider is the registry row of the provider a dashboard reports on.
type ServiceProvider struct {
	ServiceID     Term   `json:"Service ID"`
	FundingTarget Amount `json:"Funding Target (EUR)"`
}

// Target is the funding target as a plain number.
func (p ServiceProvider) Target() float64 {
	return float64(p.FundingTarget)
}
