package leads

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Intent captures how close a lead is to booking.
type Intent string

const (
	IntentExploring   Intent = "exploring"
	IntentInterested  Intent = "interested"
	IntentReadyToBook Intent = "ready_to_book"
)

// Valid reports whether the intent is one of the known values.
func (i Intent) Valid() bool {
	switch i {
	case IntentExploring, IntentInterested, IntentReadyToBook:
		return true
	}
	return false
}

// ParseIntent normalizes free-form intent labels ("Ready to book", "ready-to-book").
func ParseIntent(raw string) (Intent, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	intent := Intent(s)
	if !intent.Valid() {
		return "", ErrInvalidIntent
	}
	return intent, nil
}

// Info is the lead record accumulated over a conversation.
type Info struct {
	Name    string `json:"name,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Problem string `json:"problem,omitempty"`
	Intent  Intent `json:"intent,omitempty"`
}

// IsEmpty reports whether no field is set.
func (i Info) IsEmpty() bool {
	return i == Info{}
}

// Captured reports whether the minimum contact data (name and email) is known.
func (i Info) Captured() bool {
	return i.Name != "" && i.Email != ""
}

// Complete reports whether name, email and a company or website are known.
func (i Info) Complete() bool {
	return i.Captured() && (i.Company != "" || i.Website != "")
}

// UnmarshalJSON tolerates null fields and unknown intent labels, which the
// remote completion service may send; an unknown intent is dropped.
func (i *Info) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raw struct {
		Name    *string `json:"name"`
		Company *string `json:"company"`
		Email   *string `json:"email"`
		Phone   *string `json:"phone"`
		Website *string `json:"website"`
		Problem *string `json:"problem"`
		Intent  *string `json:"intent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Info{
		Name:    deref(raw.Name),
		Company: deref(raw.Company),
		Email:   deref(raw.Email),
		Phone:   deref(raw.Phone),
		Website: deref(raw.Website),
		Problem: deref(raw.Problem),
	}
	if raw.Intent != nil {
		if intent, err := ParseIntent(*raw.Intent); err == nil {
			i.Intent = intent
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
