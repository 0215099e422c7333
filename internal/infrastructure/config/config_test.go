package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test from an empty directory so no config.toml or .env
// from the repository leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "academy-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "academy", cfg.Database.DBName)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())

	assert.Equal(t, "RCP", cfg.Fee.ReceiptPrefix)
	assert.Equal(t, "INV", cfg.Fee.InvoicePrefix)
	assert.Equal(t, 3, cfg.Fee.EMIReminderLeadDays)
	assert.Equal(t, 3, cfg.Fee.MonthlyReminderLeadDays)
	assert.Equal(t, "DAILY", cfg.Fee.PartialPaymentCadence)
	assert.Equal(t, time.UTC, cfg.Fee.Location())

	assert.Equal(t, CounterBackendDB, cfg.Counter.Backend)
	assert.Equal(t, DispatcherLog, cfg.Reminder.Dispatcher)
	assert.Equal(t, 15*time.Minute, cfg.Reminder.Interval)
	assert.Equal(t, 100, cfg.Reminder.BatchSize)
	assert.Equal(t, "academy-backend", cfg.Telemetry.ServiceName)

	assert.False(t, cfg.Storage.Enabled)
	assert.Equal(t, "academy-invoices", cfg.Storage.Bucket)
	assert.Equal(t, "us-east-1", cfg.Storage.Region)
	assert.Equal(t, 15*time.Minute, cfg.Storage.PresignExpiration)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("ACADEMY_APP_PORT", "9000")
	t.Setenv("ACADEMY_DATABASE_HOST", "db.internal")
	t.Setenv("ACADEMY_DATABASE_PORT", "5433")
	t.Setenv("ACADEMY_FEE_RECEIPT_PREFIX", "REC")
	t.Setenv("ACADEMY_FEE_TIMEZONE", "Asia/Kolkata")
	t.Setenv("ACADEMY_COUNTER_BACKEND", "redis")
	t.Setenv("ACADEMY_REMINDER_INTERVAL", "5m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "REC", cfg.Fee.ReceiptPrefix)
	assert.Equal(t, "Asia/Kolkata", cfg.Fee.Location().String())
	assert.Equal(t, CounterBackendRedis, cfg.Counter.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Reminder.Interval)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("ACADEMY_FEE_INVOICE_PREFIX=BILL\nACADEMY_APP_NAME=from-dotenv\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("ACADEMY_FEE_INVOICE_PREFIX")
		os.Unsetenv("ACADEMY_APP_NAME")
	})
	// real environment wins over .env
	t.Setenv("ACADEMY_APP_NAME", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "BILL", cfg.Fee.InvoicePrefix)
	assert.Equal(t, "from-env", cfg.App.Name)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)
	toml := `
[fee]
receipt_prefix = "FEE"
emi_reminder_lead_days = 5

[reminder]
enabled = true
batch_size = 20
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "FEE", cfg.Fee.ReceiptPrefix)
	assert.Equal(t, 5, cfg.Fee.EMIReminderLeadDays)
	assert.True(t, cfg.Reminder.Enabled)
	assert.Equal(t, 20, cfg.Reminder.BatchSize)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "idle conns above open conns",
			env:     map[string]string{"ACADEMY_DATABASE_MAX_OPEN_CONNS": "10", "ACADEMY_DATABASE_MAX_IDLE_CONNS": "20"},
			wantErr: "cannot exceed",
		},
		{
			name:    "negative idle conns",
			env:     map[string]string{"ACADEMY_DATABASE_MAX_IDLE_CONNS": "-1"},
			wantErr: "max_idle_conns cannot be negative",
		},
		{
			name:    "unknown counter backend",
			env:     map[string]string{"ACADEMY_COUNTER_BACKEND": "memcached"},
			wantErr: "counter.backend",
		},
		{
			name:    "unknown cadence",
			env:     map[string]string{"ACADEMY_FEE_PARTIAL_PAYMENT_CADENCE": "HOURLY"},
			wantErr: "partial_payment_cadence",
		},
		{
			name:    "bad timezone",
			env:     map[string]string{"ACADEMY_FEE_TIMEZONE": "Mars/Olympus"},
			wantErr: "fee.timezone",
		},
		{
			name:    "sendgrid without key",
			env:     map[string]string{"ACADEMY_REMINDER_DISPATCHER": "sendgrid", "ACADEMY_REMINDER_FROM_ADDRESS": "fees@academy.test"},
			wantErr: "sendgrid_api_key",
		},
		{
			name:    "sendgrid without sender",
			env:     map[string]string{"ACADEMY_REMINDER_DISPATCHER": "sendgrid", "ACADEMY_REMINDER_SENDGRID_API_KEY": "SG.key"},
			wantErr: "from_address",
		},
		{
			name:    "storage without credentials",
			env:     map[string]string{"ACADEMY_STORAGE_ENABLED": "true", "ACADEMY_STORAGE_ACCESS_KEY": "minio"},
			wantErr: "storage.access_key",
		},
		{
			name:    "production without password",
			env:     map[string]string{"ACADEMY_APP_ENV": "production", "ACADEMY_DATABASE_SSLMODE": "require"},
			wantErr: "database.password is required",
		},
		{
			name:    "production without tls",
			env:     map[string]string{"ACADEMY_APP_ENV": "production", "ACADEMY_DATABASE_PASSWORD": "secret"},
			wantErr: "sslmode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "app", Password: "p@ss word", DBName: "academy", SSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss%20word@db:5432/academy?sslmode=disable", d.DSN())
}
