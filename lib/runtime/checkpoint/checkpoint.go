package checkpoint

import (
	"mixer/mixer"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const suffix = ".snapshot"

//Store keeps one snapshot file per component under dir
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.WithMessagef(err, "can't create status dir %s", dir)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, strings.ReplaceAll(name, string(filepath.Separator), "_")+suffix)
}

//Restore feeds the saved snapshot of name to component. A missing snapshot is not an error.
func (s *Store) Restore(name string, component mixer.Stateful) error {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithMessagef(err, "can't read snapshot of %s", name)
	}
	return errors.WithMessagef(component.Restore(data), "can't restore %s", name)
}

//Save writes the snapshot of component, replacing the previous one atomically
func (s *Store) Save(name string, component mixer.Stateful) error {
	data, err := component.Snapshot()
	if err != nil {
		return errors.WithMessagef(err, "can't snapshot %s", name)
	}
	tmp, err := os.CreateTemp(s.dir, name+"-*")
	if err != nil {
		return errors.WithMessage(err, "can't create snapshot file")
	}
	defer os.Remove(tmp.Name())
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.WithMessage(err, "can't write snapshot file")
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path(name))
}
