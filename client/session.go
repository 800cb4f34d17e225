package client

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/user"
)

// LoginPath is where Guard sends anonymous & unauthorized users.
const LoginPath = "/login"

var dashboards = map[string]string{
	user.RoleStudent:     "/student",
	user.RoleCoordinator: "/coordinator",
	user.RoleSME:         "/expert",
	user.RoleHOS:         "/hos",
	user.RoleAdmin:       "/admin",
}

// Session is what a logged in dashboard keeps between runs.
type Session struct {
	Email        string `json:"email"`
	Role         string `json:"role"` // value or display name
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type SessionStore interface {
	// Load returns nil when no session was saved.
	Load() (*Session, error)
	Save(sess Session) error
	Clear() error
}

// FileSessionStore keeps the session in a JSON file readable by its owner only.
type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

var _ SessionStore = (*FileSessionStore)(nil)

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading session file")
	}
	var sess Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", s.path)
	}
	return &sess, nil
}

func (s *FileSessionStore) Save(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return writeFileAtomic(s.path, data)
}

func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}

// roleValue accepts a role value ("sme") or display name ("Subject Method Expert").
func roleValue(role string) string {
	if user.RoleName(role) != "" {
		return role
	}
	return user.RoleValue(role)
}

// DashboardPath is the landing page of `role`, LoginPath for unknown roles.
func DashboardPath(role string) string {
	if path, ok := dashboards[roleValue(role)]; ok {
		return path
	}
	return LoginPath
}

// Guard returns where to redirect the session, and false, when it may not open a page reserved to `allowed` roles.
// Any logged in session passes when no role is given.
func Guard(sess *Session, allowed ...string) (string, bool) {
	if sess == nil || sess.Token == "" {
		return LoginPath, false
	}
	role := roleValue(sess.Role)
	if role == "" {
		return LoginPath, false
	}
	if len(allowed) == 0 {
		return "", true
	}
	for _, r := range allowed {
		if roleValue(r) == role {
			return "", true
		}
	}
	return LoginPath, false
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), path), "renaming temp file")
}
