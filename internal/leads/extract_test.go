package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_Golden(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Info
	}{
		{
			name: "intro with business email",
			text: "I'm Carlos from LAComputech, email carlos@computech.support",
			want: Info{Name: "Carlos", Company: "LAComputech", Email: "carlos@computech.support", Website: "computech.support"},
		},
		{
			name: "freemail domain is not a website",
			text: "reach me: Dana.Reyes@Gmail.com",
			want: Info{Email: "dana.reyes@gmail.com"},
		},
		{
			name: "freemail email plus separate site",
			text: "my email is bob@yahoo.com and our site is https://www.AcmeWidgets.io/about/",
			want: Info{Email: "bob@yahoo.com", Website: "acmewidgets.io"},
		},
		{
			name: "bare domain",
			text: "Check out northwind.com for our catalog",
			want: Info{Website: "northwind.com"},
		},
		{
			name: "phone with parentheses",
			text: "call me at (555) 123-4567 tomorrow",
			want: Info{Phone: "(555) 123-4567"},
		},
		{
			name: "phone with country code",
			text: "my cell is +1 555.987.6543",
			want: Info{Phone: "+1 555.987.6543"},
		},
		{
			name: "my name is two words",
			text: "Hi, my name is Maria Lopez.",
			want: Info{Name: "Maria Lopez"},
		},
		{
			name: "this is with company",
			text: "this is Dana with Northwind Traders.",
			want: Info{Name: "Dana", Company: "Northwind Traders"},
		},
		{
			name: "leading name before from",
			text: "Priya from Contoso here",
			want: Info{Name: "Priya", Company: "Contoso here"},
		},
		{
			name: "work for stops at connector",
			text: "I work for Globex Logistics and we ship freight",
			want: Info{Company: "Globex Logistics"},
		},
		{
			name: "lowercase after prefix is not a company",
			text: "I'm with you on that, billing is slow",
			want: Info{},
		},
		{
			name: "no match",
			text: "our invoices take forever to go out",
			want: Info{},
		},
		{
			name: "blank",
			text: "   ",
			want: Info{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestExtract_KnownFalsePositives(t *testing.T) {
	// Any capitalized phrase after "from" reads as a company.
	got := Extract("Greetings from Boston, we run a small shop")
	assert.Equal(t, "Boston", got.Company)

	// A capitalized word after "I am" reads as a name.
	got = Extract("I am Interested in automation")
	assert.Equal(t, "Interested", got.Name)
}

func TestExtract_RejectsLongCompany(t *testing.T) {
	got := Extract("from Amalgamated Consolidated International Holdings Group Of Many Subsidiaries Worldwide")
	assert.Empty(t, got.Company)
}

func TestExtract_IgnoresLongDigitRuns(t *testing.T) {
	got := Extract("order number 1234567890123 is stuck")
	assert.Empty(t, got.Phone)
}

func TestExtract_Deterministic(t *testing.T) {
	text := "I'm Carlos from LAComputech, email carlos@computech.support"
	assert.Equal(t, Extract(text), Extract(text))
}
