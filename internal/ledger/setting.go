package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"go.uber.org/zap"

	"github.com/ecmcloud/ecm/internal/fiscal"
)

// Well-known setting keys seeded into every store.
const (
	KeyFiscalStartYear    = "fiscal_start_year"
	KeyFiscalStartMonth   = "fiscal_start_month"
	KeyStaffCodeDigits    = "staff_code_digits"
	KeyUnbilledDefinition = "unbilled_definition"
)

// Values accepted for KeyUnbilledDefinition.
const (
	UnbilledActive    = "active"
	UnbilledCompleted = "completed"
	UnbilledOverdue   = "overdue"
)

// ErrInvalidSetting is returned when a well-known setting gets an unusable value.
var ErrInvalidSetting = errors.New("invalid setting value")

var settingColumns = []string{"id", "key", "value", "description", "created_at", "updated_at"}

// FiscalInfo is the fiscal configuration together with the period it yields
// today.
type FiscalInfo struct {
	fiscal.Settings
	CurrentPeriod int `json:"currentPeriod"`
}

// ListSettings returns every setting ordered by key.
func (s *Service) ListSettings(ctx context.Context, companyID int64) ([]Setting, error) {
	settings := []Setting{}
	err := s.view(ctx, companyID, func(st *store) error {
		return st.selectAll(ctx, &settings, st.sb.Select(settingColumns...).From("system_settings").OrderBy("key"))
	})
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	return settings, nil
}

// GetSetting returns the setting stored under key.
func (s *Service) GetSetting(ctx context.Context, companyID int64, key string) (*Setting, error) {
	var setting *Setting
	err := s.view(ctx, companyID, func(st *store) error {
		var err error
		setting, err = st.setting(ctx, key)
		return err
	})
	return setting, err
}

// PutSetting creates or replaces the value stored under key. Well-known keys
// are validated.
func (s *Service) PutSetting(ctx context.Context, companyID int64, key, value string) (*Setting, error) {
	var setting *Setting
	err := s.update(ctx, companyID, func(st *store) error {
		if err := st.validateSetting(ctx, key, value); err != nil {
			return err
		}
		if err := st.upsertSetting(ctx, key, value, s.now().UTC()); err != nil {
			return err
		}
		var err error
		setting, err = st.setting(ctx, key)
		return err
	})
	return setting, err
}

// FiscalSettings returns the company's fiscal configuration and current period.
func (s *Service) FiscalSettings(ctx context.Context, companyID int64) (*FiscalInfo, error) {
	var info *FiscalInfo
	err := s.view(ctx, companyID, func(st *store) error {
		fs, err := st.fiscal(ctx)
		if err != nil {
			return err
		}
		info = &FiscalInfo{Settings: fs, CurrentPeriod: fs.PeriodAt(s.now())}
		return nil
	})
	return info, err
}

// UpdateFiscalSettings replaces the fiscal configuration.
func (s *Service) UpdateFiscalSettings(ctx context.Context, companyID int64, fs fiscal.Settings) (*FiscalInfo, error) {
	if err := fs.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSetting, err)
	}

	err := s.update(ctx, companyID, func(st *store) error {
		now := s.now().UTC()
		for key, v := range map[string]int{
			KeyFiscalStartYear:  fs.StartYear,
			KeyFiscalStartMonth: fs.StartMonth,
			KeyStaffCodeDigits:  fs.StaffCodeDigits,
		} {
			if err := st.upsertSetting(ctx, key, strconv.Itoa(v), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("fiscal settings updated",
		zap.Int64("companyId", companyID),
		zap.Int("startYear", fs.StartYear),
		zap.Int("startMonth", fs.StartMonth),
	)
	return &FiscalInfo{Settings: fs, CurrentPeriod: fs.PeriodAt(s.now())}, nil
}

func (st *store) setting(ctx context.Context, key string) (*Setting, error) {
	var setting Setting
	err := st.get(ctx, &setting, st.sb.Select(settingColumns...).From("system_settings").Where(sq.Eq{"key": key}))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying setting: %w", err)
	}
	return &setting, nil
}

func (st *store) upsertSetting(ctx context.Context, key, value string, now time.Time) error {
	query, args, err := st.sb.
		Insert("system_settings").
		Columns("key", "value", "created_at", "updated_at").
		Values(key, value, now, now).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building setting upsert: %w", err)
	}
	if _, err := st.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving setting %s: %w", key, err)
	}
	return nil
}

// values returns the value of every requested key that exists.
func (st *store) values(ctx context.Context, keys ...string) (map[string]string, error) {
	rows := []Setting{}
	if err := st.selectAll(ctx, &rows, st.sb.Select(settingColumns...).From("system_settings").Where(sq.Eq{"key": keys})); err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// fiscal reads the fiscal settings. Missing or malformed values fall back to
// the defaults.
func (st *store) fiscal(ctx context.Context) (fiscal.Settings, error) {
	vals, err := st.values(ctx, KeyFiscalStartYear, KeyFiscalStartMonth, KeyStaffCodeDigits)
	if err != nil {
		return fiscal.Settings{}, err
	}

	fs := fiscal.Default()
	if v, err := strconv.Atoi(vals[KeyFiscalStartYear]); err == nil {
		fs.StartYear = v
	}
	if v, err := strconv.Atoi(vals[KeyFiscalStartMonth]); err == nil {
		fs.StartMonth = v
	}
	if v, err := strconv.Atoi(vals[KeyStaffCodeDigits]); err == nil {
		fs.StaffCodeDigits = v
	}
	if fs.Validate() != nil {
		return fiscal.Default(), nil
	}
	return fs, nil
}

func (st *store) unbilledDefinition(ctx context.Context) (string, error) {
	vals, err := st.values(ctx, KeyUnbilledDefinition)
	if err != nil {
		return "", err
	}
	switch v := vals[KeyUnbilledDefinition]; v {
	case UnbilledActive, UnbilledCompleted, UnbilledOverdue:
		return v, nil
	}
	return UnbilledCompleted, nil
}

func (st *store) validateSetting(ctx context.Context, key, value string) error {
	switch key {
	case KeyUnbilledDefinition:
		switch value {
		case UnbilledActive, UnbilledCompleted, UnbilledOverdue:
			return nil
		}
		return fmt.Errorf("%w: %s must be one of active, completed, overdue", ErrInvalidSetting, key)

	case KeyFiscalStartYear, KeyFiscalStartMonth, KeyStaffCodeDigits:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s must be an integer", ErrInvalidSetting, key)
		}
		fs, err := st.fiscal(ctx)
		if err != nil {
			return err
		}
		switch key {
		case KeyFiscalStartYear:
			fs.StartYear = n
		case KeyFiscalStartMonth:
			fs.StartMonth = n
		case KeyStaffCodeDigits:
			fs.StaffCodeDigits = n
		}
		if err := fs.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSetting, err)
		}
	}
	return nil
}
