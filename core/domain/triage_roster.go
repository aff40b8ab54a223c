package domain

import "time"

// GeneralDepartment is the label used when no roster is configured.
const GeneralDepartment = "General"

// TeamMember is one person who receives mail routed to a department.
type TeamMember struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// Department groups the members that handle one routing label.
type Department struct {
	Name    string       `json:"name" yaml:"name"`
	Members []TeamMember `json:"members" yaml:"members"`
}

// Roster maps department names to members. Order is significant: prompt
// rendering and fallback matching both walk it front to back.
type Roster []Department

func (r Roster) IsEmpty() bool { return len(r) == 0 }

func (r Roster) Names() []string {
	names := make([]string, len(r))
	for i, d := range r {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a department by exact, case-sensitive name.
func (r Roster) Lookup(name string) (Department, bool) {
	for _, d := range r {
		if d.Name == name {
			return d, true
		}
	}
	return Department{}, false
}

// Add appends a member under dept, creating the department on first use.
func (r Roster) Add(dept string, m TeamMember) Roster {
	for i := range r {
		if r[i].Name == dept {
			r[i].Members = append(r[i].Members, m)
			return r
		}
	}
	return append(r, Department{Name: dept, Members: []TeamMember{m}})
}

// StoredTeamMember is a team_members row.
type StoredTeamMember struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Department string    `json:"department"`
	CreatedAt  time.Time `json:"created_at"`
}

// RosterFromMembers groups rows by department, keeping first-seen order.
func RosterFromMembers(members []*StoredTeamMember) Roster {
	var r Roster
	for _, m := range members {
		r = r.Add(m.Department, TeamMember{Name: m.Name, Email: m.Email})
	}
	return r
}
