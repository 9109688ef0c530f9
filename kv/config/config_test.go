package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
store-addr = "127.0.0.1:30160"
partition-id = 2
mode = "2pl"
epoch-duration = "2s"
fridge-timeout = "300ms"
max-cycle-length = 4

[[peers]]
partition = 1
addr = "127.0.0.1:30150"

[[peers]]
partition = 2
addr = "127.0.0.1:30160"

[log]
level = "debug"
`

func TestLoadConfig(t *testing.T) {
	dir, err := ioutil.TempDir("", "rcckv-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "rcckv.toml")
	require.Nil(t, ioutil.WriteFile(path, []byte(sampleConfig), 0644))

	conf, err := LoadConfig(path)
	require.Nil(t, err)
	assert.Equal(t, "127.0.0.1:30160", conf.StoreAddr)
	assert.Equal(t, uint32(2), conf.PartitionID)
	assert.Equal(t, Mode2PL, conf.Mode)
	assert.Equal(t, 2*time.Second, conf.EpochDuration.Duration)
	assert.Equal(t, 300*time.Millisecond, conf.FridgeTimeout.Duration)
	// untouched fields keep their default
	assert.Equal(t, 100*time.Millisecond, conf.InquireTimeout.Duration)
	assert.Equal(t, 4, conf.MaxCycleLength)
	assert.Equal(t, "debug", conf.Log.Level)
	require.Nil(t, conf.Validate())
	assert.Equal(t, map[uint32]string{1: "127.0.0.1:30150"}, conf.PeerAddrs())
}

func TestLoadConfigBadMode(t *testing.T) {
	dir, err := ioutil.TempDir("", "rcckv-config")
	require.Nil(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "bad.toml")
	require.Nil(t, ioutil.WriteFile(path, []byte(`mode = "occ"`), 0644))
	_, err = LoadConfig(path)
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	conf := NewTestConfig()
	defer os.RemoveAll(conf.DBPath)
	require.Nil(t, conf.Validate())

	conf.InquireRate = 0
	assert.NotNil(t, conf.Validate())
	conf.InquireRate = 1

	conf.Peers = []Peer{{Partition: 1, Addr: "a"}, {Partition: 1, Addr: "b"}}
	assert.NotNil(t, conf.Validate())

	conf.Peers = []Peer{{Partition: 1, Addr: "a"}}
	conf.PartitionID = 3
	assert.NotNil(t, conf.Validate())

	conf.PartitionID = 1
	require.Nil(t, conf.Validate())
	assert.Empty(t, conf.PeerAddrs())
}

func TestSampleConfig(t *testing.T) {
	conf, err := LoadConfig("../../conf/rcckv.toml")
	require.Nil(t, err)
	require.Nil(t, conf.Validate())
	assert.Equal(t, uint32(1), conf.PartitionID)
	assert.Equal(t, ModeRcc, conf.Mode)
	assert.Equal(t, time.Second, conf.EpochDuration.Duration)
	assert.Equal(t, map[uint32]string{2: "127.0.0.1:20161"}, conf.PeerAddrs())
}
