package tzh3

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func createSqliteFixture(t *testing.T, script string) string {
	name := filepath.Join(t.TempDir(), "zones.sqlite")
	conn, err := sqlite.OpenConn(name, sqlite.OpenReadWrite, sqlite.OpenCreate)
	require.Nil(t, err)
	defer conn.Close()
	require.Nil(t, sqlitex.ExecuteScript(conn, sqliteSchema+script, nil))
	return name
}

func TestConvert(t *testing.T) {
	SetQuietMode(true)
	defer resetProgressWriter()

	input := createSqliteFixture(t, `
INSERT INTO zones VALUES (10, 'Asia/Tokyo'), (20, 'Australia/Sydney'), (30, 'America/New_York');
INSERT INTO cells VALUES ('892a1072893ffff', 30), ('842f5a3ffffffff', 10), ('80bffffffffffff', 20);
`)
	output := filepath.Join(t.TempDir(), "zones.tzh3")
	require.Nil(t, Convert(log.New(io.Discard, "", 0), input, output, true))

	data, err := os.ReadFile(output)
	require.Nil(t, err)
	ix, err := Decode(data)
	require.Nil(t, err)
	assert.Equal(t, fixtureIndex(), ix)
}

func TestConvertMetadataResolution(t *testing.T) {
	SetQuietMode(true)
	defer resetProgressWriter()

	input := createSqliteFixture(t, `
INSERT INTO metadata VALUES ('base_resolution', '0'), ('max_resolution', '7');
INSERT INTO zones VALUES (0, 'UTC');
INSERT INTO cells VALUES ('8075fffffffffff', 0);
`)
	output := filepath.Join(t.TempDir(), "zones.tzh3")
	require.Nil(t, Convert(log.New(io.Discard, "", 0), input, output, false))

	data, _ := os.ReadFile(output)
	header, err := ReadHeader(data)
	require.Nil(t, err)
	assert.Equal(t, uint8(7), header.MaxResolution)
}

func TestConvertRejects(t *testing.T) {
	SetQuietMode(true)
	defer resetProgressWriter()
	logger := log.New(io.Discard, "", 0)

	input := createSqliteFixture(t, `
INSERT INTO zones VALUES (0, 'UTC');
INSERT INTO cells VALUES ('8075fffffffffff', 1);
`)
	assert.NotNil(t, Convert(logger, input, filepath.Join(t.TempDir(), "a.tzh3"), false))

	input = createSqliteFixture(t, `
INSERT INTO zones VALUES (0, 'UTC');
INSERT INTO cells VALUES ('not a cell', 0);
`)
	assert.NotNil(t, Convert(logger, input, filepath.Join(t.TempDir(), "b.tzh3"), false))

	input = createSqliteFixture(t, `
INSERT INTO metadata VALUES ('max_resolution', '16');
INSERT INTO zones VALUES (0, 'UTC');
`)
	assert.NotNil(t, Convert(logger, input, filepath.Join(t.TempDir(), "c.tzh3"), false))

	// a res 7 cell could never be reached by lookups projected at res 3
	input = createSqliteFixture(t, `
INSERT INTO metadata VALUES ('max_resolution', '3');
INSERT INTO zones VALUES (0, 'Asia/Tokyo');
INSERT INTO cells VALUES ('872f5a363ffffff', 0);
`)
	output := filepath.Join(t.TempDir(), "d.tzh3")
	err := Convert(logger, input, output, false)
	assert.NotNil(t, err)
	assert.Contains(t, err.Error(), "outside of metadata range")
	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr))

	input = createSqliteFixture(t, `
INSERT INTO metadata VALUES ('base_resolution', '2');
INSERT INTO zones VALUES (0, 'UTC');
INSERT INTO cells VALUES ('8075fffffffffff', 0);
`)
	assert.NotNil(t, Convert(logger, input, filepath.Join(t.TempDir(), "e.tzh3"), false))
}

func TestExportRoundtrip(t *testing.T) {
	SetQuietMode(true)
	defer resetProgressWriter()
	logger := log.New(io.Discard, "", 0)

	dir := t.TempDir()
	db := filepath.Join(dir, "export.sqlite")
	require.Nil(t, Export(logger, "", writeFixture(t, fixtureIndex(), true), db))

	conn, err := sqlite.OpenConn(db, sqlite.OpenReadOnly)
	require.Nil(t, err)
	metadata, err := readSqliteMetadata(conn)
	conn.Close()
	require.Nil(t, err)
	assert.Equal(t, "9", metadata["max_resolution"])
	assert.Equal(t, "1", metadata["version"])

	output := filepath.Join(dir, "roundtrip.tzh3")
	require.Nil(t, Convert(logger, db, output, false))
	data, _ := os.ReadFile(output)
	ix, err := Decode(data)
	require.Nil(t, err)
	assert.Equal(t, fixtureIndex(), ix)

	// refuses to overwrite
	assert.NotNil(t, Export(logger, "", writeFixture(t, fixtureIndex(), false), db))
}
