package dig_container

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/jayalms/lms/apps/api/echo"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/services/filestore"
	"github.com/jayalms/lms/services/realtime"
)

func TestNew_inmem(t *testing.T) {
	t.Setenv("ENV", "test")
	t.Setenv("TEST_DATABASE_ENGINE", "inmem")
	t.Setenv("TEST_STORAGE_LOCALDIR", t.TempDir())

	c := New(false)
	err := c.Invoke(func(conf *core.Config, db *Database, broker *Broker, files core.FileStorage, server *echoapi.Server) {
		assert.True(t, conf.TestMode)
		assert.Nil(t, db.SQL)
		assert.NoError(t, db.Close())

		assert.IsType(t, &realtime.Hub{}, broker.ChangeBroker)
		assert.NoError(t, broker.Close())
		assert.IsType(t, &filestore.LocalStorage{}, files)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
	require.NoError(t, err)
}

func TestNewStorage_unknownDriver(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage.Driver = "ftp"
	_, err := newStorage(conf)
	assert.Error(t, err)
}

func TestNewBroker_unknownDriver(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Realtime.Driver = "carrier-pigeon"
	_, err := newBroker(conf, core.NopLogger)
	assert.Error(t, err)
}
