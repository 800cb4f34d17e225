package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/user"
	"github.com/trezcool/cts/tests"
)

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
	extra   interface{}
}

func setup(t *testing.T) (*commandLine, *testutil.Env) {
	env := testutil.NewEnv(t)
	cli := &commandLine{
		usrRepo: env.Repos.User,
		progSvc: env.ProgramSvc,
		out:     new(bytes.Buffer),
	}
	return cli, env
}

func mockPassword(t *testing.T, pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = nil })
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	t.Run("no database", func(t *testing.T) {
		assert.Equal(t, errNoDatabase, cli.run([]string{"migrate", "up"}))
	})

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	cli.db = db

	type call struct {
		command string
		args    []string
	}
	var got call
	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		got = call{command: command, args: args}
		return nil
	}
	t.Cleanup(func() { migrateFunc = nil })

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "up", args: []string{"migrate", "up"}, extra: call{command: "up", args: []string{}}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, extra: call{command: "up-to", args: []string{"2"}}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}, extra: call{command: "create", args: []string{"course", "sql"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got = call{}
			err := cli.run(tt.args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.extra, got)
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no email", args: []string{"adduser", "--name", "Admin"}, pwd: testutil.Password, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--email", "admin@test.cd"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			assert.Equal(t, tt.wantErr, cli.run(tt.args))
		})
	}

	t.Run("unknown role", func(t *testing.T) {
		mockPassword(t, testutil.Password)
		err := cli.run([]string{"adduser", "--email", "admin@test.cd", "--role", "dean"})
		require.Error(t, err)
		assert.Equal(t, `unknown role "dean"`, err.Error())
	})

	mockPassword(t, testutil.Password)
	require.NoError(t, cli.run([]string{"adduser", "--email", " Admin@Test.cd ", "--name", "Admin"}))
	admin, err := env.Repos.User.GetUser(ctx, user.GetFilter{Email: "admin@test.cd"})
	require.NoError(t, err)
	assert.Equal(t, "Admin", admin.Name)
	assert.Equal(t, []string{user.RoleAdmin}, admin.Roles)
	assert.True(t, admin.Active())
	assert.NoError(t, admin.CheckPassword(testutil.Password))

	t.Run("existing user", func(t *testing.T) {
		mockPassword(t, "N3w-Passw0rd!")
		require.NoError(t, cli.run([]string{"adduser", "--email", "admin@test.cd", "--role", "hos,coordinator"}))

		usr, err := env.Repos.User.GetUser(ctx, user.GetFilter{Email: "admin@test.cd"})
		require.NoError(t, err)
		assert.Equal(t, admin.ID, usr.ID)
		assert.Equal(t, "Admin", usr.Name)
		assert.ElementsMatch(t, []string{user.RoleAdmin, user.RoleHOS, user.RoleCoordinator}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("N3w-Passw0rd!"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env := setup(t)
	usr := testutil.CreateUser(t, env.Repos.User, "User", "awe@test.cd", testutil.Password, nil, true)

	tests := []cliTest{
		{name: "no email", args: []string{"resetpassword"}, pwd: "lol", wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "--email", usr.Email}, wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, pwd: "lol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			err := cli.run(tt.args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	t.Run("user not found", func(t *testing.T) {
		mockPassword(t, "lol")
		err := cli.run([]string{"resetpassword", "--email", "lol@test.cd"})
		assert.True(t, core.IsNotFound(err))
	})

	mockPassword(t, "lmao")
	require.NoError(t, cli.run([]string{"resetpassword", "--email", "AWE@test.cd"}))
	refreshed, err := env.Repos.User.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash))
	assert.NoError(t, refreshed.CheckPassword("lmao"))
}

func Test_commandLine_seed(t *testing.T) {
	cli, env := setup(t)
	ctx := context.Background()

	require.NoError(t, cli.run([]string{"seed"}))
	// seeding twice changes nothing
	require.NoError(t, cli.run([]string{"seed"}))

	data, err := env.ProgramSvc.StaticData(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, data.Campuses, len(devSeed.Campuses))
	assert.Len(t, data.OldCampuses, len(devSeed.OldCampuses))
	assert.Len(t, data.Programs, len(devSeed.Programs))

	t.Run("seed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		content := `{
			"campuses": [{"campus_id": 7, "campus_name": "City Campus"}],
			"oldCampuses": [{"old_campus_name": "Old University"}],
			"programs": [{"program_id": 3, "program_code": "BBA", "program_name": "Business Administration", "campus_id": 7}],
			"courses": [{"program_id": 3, "course_code": "ACC101", "course_name": "Accounting", "course_credit": 3}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		require.NoError(t, cli.run([]string{"seed", "--file", path}))

		data, err := env.ProgramSvc.StaticData(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, data.Campuses, 2)
		assert.Len(t, data.OldCampuses, 3)
		assert.Len(t, data.Programs, 3)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, cli.run([]string{"seed", "-f", filepath.Join(t.TempDir(), "lol.json")}))
	})
}
