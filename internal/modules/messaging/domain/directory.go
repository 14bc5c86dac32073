package domain

import "strings"

// Directory is the capability table of contacts each role may message.
// Roles listed in inbound additionally see every identity that previously messaged them.
type Directory struct {
	static  map[Role][]string
	inbound map[Role]struct{}
}

func NewDirectory(static map[Role][]string, inbound ...Role) *Directory {
	d := &Directory{
		static:  make(map[Role][]string, len(static)),
		inbound: make(map[Role]struct{}, len(inbound)),
	}
	for role, contacts := range static {
		d.static[role] = append([]string(nil), contacts...)
	}
	for _, role := range inbound {
		d.inbound[role] = struct{}{}
	}
	return d
}

// DefaultDirectory mirrors the care facility's contact table.
func DefaultDirectory() *Directory {
	return NewDirectory(map[Role][]string{
		RoleDoctor:  {"Admin"},
		RoleAdmin:   {"Dr. Smith", "Dr. Johnson", "John Doe", "Jane Smith"},
		RolePatient: {"Admin", "Dr. Smith", "Dr. Johnson"},
	}, RoleDoctor)
}

// Recipients lists the contacts available to owner, de-duplicated in table order
// followed by inbound senders in order of first contact.
func (d *Directory) Recipients(role Role, owner string, history []Message) []string {
	out := make([]string, 0, len(d.static[role]))
	seen := make(map[string]struct{})
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || name == owner {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range d.static[role] {
		add(name)
	}
	if _, ok := d.inbound[role]; ok {
		for _, m := range history {
			if m.Sender != owner {
				add(m.Sender)
			}
		}
	}
	return out
}

// Allows reports whether owner may address recipient.
func (d *Directory) Allows(role Role, owner string, history []Message, recipient string) bool {
	for _, name := range d.Recipients(role, owner, history) {
		if name == recipient {
			return true
		}
	}
	return false
}

// FilterRecipients keeps the names containing term, case-insensitively.
func FilterRecipients(names []string, term string) []string {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if needle == "" || strings.Contains(strings.ToLower(name), needle) {
			out = append(out, name)
		}
	}
	return out
}
