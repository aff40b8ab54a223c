package roster

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
	"triage_server/pkg/logger"
)

// Source names which layer produced a roster.
const (
	SourceDatabase = "database"
	SourceFile     = "file"
	SourceEnv      = "env"
	SourceNone     = "none"
)

type Config struct {
	// EnvMembers is the TEAM_MEMBERS string: "name:email:dept,name:email:dept".
	EnvMembers string
	// File is an optional YAML roster path.
	File string
}

// Service resolves the roster for each classification and manages team members.
type Service struct {
	repo out.TeamMemberRepository
	cfg  Config
	log  *logger.Logger
}

func NewService(repo out.TeamMemberRepository, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Default()
	}
	return &Service{repo: repo, cfg: cfg, log: log}
}

// Roster reads through to the store on every call. An empty table falls back
// to the YAML file, then to TEAM_MEMBERS. Store errors are returned.
func (s *Service) Roster(ctx context.Context) (domain.Roster, error) {
	r, _, err := s.Resolve(ctx)
	return r, err
}

func (s *Service) Resolve(ctx context.Context) (domain.Roster, string, error) {
	if s.repo != nil {
		members, err := s.repo.List(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load team members: %w", err)
		}
		if len(members) > 0 {
			return domain.RosterFromMembers(members), SourceDatabase, nil
		}
	}

	if s.cfg.File != "" {
		r, err := LoadFile(s.cfg.File)
		if err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("file", s.cfg.File).Warn("roster file unreadable, trying TEAM_MEMBERS")
		} else if !r.IsEmpty() {
			return r, SourceFile, nil
		}
	}

	if r := ParseEnv(s.cfg.EnvMembers); !r.IsEmpty() {
		return r, SourceEnv, nil
	}
	return domain.Roster{}, SourceNone, nil
}

// ParseEnv parses "name:email:dept" entries separated by commas. Entries that
// do not have exactly three parts are skipped.
func ParseEnv(v string) domain.Roster {
	var r domain.Roster
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if !strings.Contains(entry, ":") {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			continue
		}
		r = r.Add(parts[2], domain.TeamMember{Name: parts[0], Email: parts[1]})
	}
	return r
}

type rosterFile struct {
	Departments []domain.Department `yaml:"departments"`
}

// LoadFile reads a YAML roster:
//
//	departments:
//	  - name: Finance
//	    members:
//	      - {name: Bo, email: bo@co.com}
func LoadFile(path string) (domain.Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseYAML(data)
}

func ParseYAML(data []byte) (domain.Roster, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("invalid roster yaml: %w", err)
	}
	var r domain.Roster
	for _, d := range f.Departments {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			continue
		}
		if len(d.Members) == 0 {
			r = append(r, domain.Department{Name: name})
			continue
		}
		for _, m := range d.Members {
			r = r.Add(name, m)
		}
	}
	return r, nil
}

var errNoStore = apperr.ConfigError("team member store not configured")

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidEmail(email string) bool { return emailPattern.MatchString(email) }

func validate(m *domain.StoredTeamMember) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Department = strings.TrimSpace(m.Department)
	switch {
	case m.Name == "":
		return apperr.MissingField("name")
	case m.Department == "":
		return apperr.MissingField("department")
	case !ValidEmail(m.Email):
		return apperr.ValidationFailed("email", "not a valid address")
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]*domain.StoredTeamMember, error) {
	if s.repo == nil {
		return []*domain.StoredTeamMember{}, nil
	}
	members, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.DatabaseError("list team members", err)
	}
	return members, nil
}

func (s *Service) Add(ctx context.Context, m *domain.StoredTeamMember) error {
	if err := validate(m); err != nil {
		return err
	}
	if s.repo == nil {
		return errNoStore
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return mapRepoErr("add team member", err)
	}
	s.log.WithContext(ctx).WithFields(map[string]any{"member_id": m.ID, "department": m.Department}).Info("team member added")
	return nil
}

func (s *Service) Update(ctx context.Context, m *domain.StoredTeamMember) error {
	if err := validate(m); err != nil {
		return err
	}
	if s.repo == nil {
		return errNoStore
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return mapRepoErr("update team member", err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if s.repo == nil {
		return errNoStore
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr("delete team member", err)
	}
	s.log.WithContext(ctx).WithField("member_id", id).Info("team member deleted")
	return nil
}

func mapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, out.ErrNotFound):
		return apperr.NotFound("team member")
	case errors.Is(err, out.ErrDuplicate):
		return apperr.Conflict("a team member with this email already exists")
	default:
		return apperr.DatabaseError(op, err)
	}
}
