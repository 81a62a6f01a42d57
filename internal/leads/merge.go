package leads

// Merge applies patch onto i and reports whether any field changed.
//
// Contact fields keep the first non-empty value ever seen. Problem and Intent
// are refined as the conversation goes on, so the newest non-empty value wins.
func (i *Info) Merge(patch Info) bool {
	changed := false

	keep := func(dst *string, v string) {
		if v != "" && *dst == "" {
			*dst = v
			changed = true
		}
	}
	keep(&i.Name, patch.Name)
	keep(&i.Company, patch.Company)
	keep(&i.Email, patch.Email)
	keep(&i.Phone, patch.Phone)
	keep(&i.Website, patch.Website)

	if patch.Problem != "" && patch.Problem != i.Problem {
		i.Problem = patch.Problem
		changed = true
	}
	if patch.Intent.Valid() && patch.Intent != i.Intent {
		i.Intent = patch.Intent
		changed = true
	}
	return changed
}

// Fields lists the names of the non-empty fields, in declaration order.
func (i Info) Fields() []string {
	var out []string
	add := func(name, v string) {
		if v != "" {
			out = append(out, name)
		}
	}
	add("name", i.Name)
	add("company", i.Company)
	add("email", i.Email)
	add("phone", i.Phone)
	add("website", i.Website)
	add("problem", i.Problem)
	add("intent", string(i.Intent))
	return out
}
