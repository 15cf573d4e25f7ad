package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"food-delivery/internal/apperr"
	"food-delivery/internal/models"
	"food-delivery/internal/util"

	"go.uber.org/zap"
)

type stagedFile struct {
	tmp string
	dst string
}

// readFile returns nil data for a missing file.
func (s *Store) readFile(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		util.StoreErrorsTotal.WithLabelValues("read").Inc()
		return nil, apperr.Storage("read "+name, err)
	}
	return data, nil
}

// readDocument decodes an id-keyed document into dst. A malformed document
// is logged and leaves dst empty.
func (s *Store) readDocument(name string, dst interface{}) error {
	data, err := s.readFile(name)
	if err != nil || len(data) == 0 {
		return err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		s.logger.Warn("Malformed data file, starting from an empty collection",
			zap.String("file", name),
			zap.Error(err))
		util.StoreErrorsTotal.WithLabelValues("decode").Inc()
		resetDocument(dst)
	}
	return nil
}

func resetDocument(dst interface{}) {
	switch v := dst.(type) {
	case *map[string]json.RawMessage:
		*v = make(map[string]json.RawMessage)
	case *map[string]*models.Restaurant:
		*v = make(map[string]*models.Restaurant)
	case *map[string]*models.Order:
		*v = make(map[string]*models.Order)
	}
}

type userRecord struct {
	Role models.UserRole `json:"role"`
}

func (s *Store) readUsers(state *State) error {
	raw := make(map[string]json.RawMessage)
	if err := s.readDocument(usersFile, &raw); err != nil {
		return err
	}

	for id, msg := range raw {
		var rec userRecord
		if err := json.Unmarshal(msg, &rec); err != nil {
			s.logger.Warn("Skipping malformed user record", zap.String("user_id", id), zap.Error(err))
			continue
		}

		switch rec.Role {
		case models.RoleCustomer:
			var c models.Customer
			if err := json.Unmarshal(msg, &c); err != nil {
				s.logger.Warn("Skipping malformed customer", zap.String("user_id", id), zap.Error(err))
				continue
			}
			state.Customers[id] = &c
		case models.RoleDeliveryAgent:
			var a models.DeliveryAgent
			if err := json.Unmarshal(msg, &a); err != nil {
				s.logger.Warn("Skipping malformed delivery agent", zap.String("user_id", id), zap.Error(err))
				continue
			}
			state.Agents[id] = &a
		default:
			s.logger.Warn("Skipping user with unknown role",
				zap.String("user_id", id),
				zap.String("role", string(rec.Role)))
		}
	}
	return nil
}

func encodeUsers(state *State) map[string]interface{} {
	users := make(map[string]interface{}, len(state.Customers)+len(state.Agents))
	for id, c := range state.Customers {
		c.Role = models.RoleCustomer
		users[id] = c
	}
	for id, a := range state.Agents {
		a.Role = models.RoleDeliveryAgent
		users[id] = a
	}
	return users
}

// stage writes v to a temporary file next to its destination.
func (s *Store) stage(name string, v interface{}) (stagedFile, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return stagedFile{}, fmt.Errorf("failed to encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return stagedFile{}, err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return stagedFile{}, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return stagedFile{}, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return stagedFile{}, err
	}

	return stagedFile{tmp: tmp.Name(), dst: filepath.Join(s.dir, name)}, nil
}
