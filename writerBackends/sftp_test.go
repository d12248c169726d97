package writerbackends

import (
	"crypto/ed25519"
	"crypto/rand"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"mediaforge/config"
)

func newHostKey(t *testing.T) ssh.PublicKey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := ssh.NewPublicKey(pub)
	require.NoError(t, err)
	return key
}

var sftpRemote = &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 22}

func TestSFTPPinnedHostKey(t *testing.T) {
	trusted, other := newHostKey(t), newHostKey(t)
	s := NewSFTPStore("bucket-a", config.SFTPConfig{
		Host:    "sftp.example",
		HostKey: string(ssh.MarshalAuthorizedKey(trusted)),
	}, nil)

	cb, err := s.hostKeyCallback()
	require.NoError(t, err)
	assert.NoError(t, cb("sftp.example:22", sftpRemote, trusted))
	assert.Error(t, cb("sftp.example:22", sftpRemote, other))
}

func TestSFTPKnownHostsFile(t *testing.T) {
	trusted, other := newHostKey(t), newHostKey(t)
	file := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{"sftp.example:22"}, trusted)
	require.NoError(t, os.WriteFile(file, []byte(line+"\n"), 0o600))

	s := NewSFTPStore("bucket-a", config.SFTPConfig{Host: "sftp.example", KnownHostsFile: file}, nil)
	cb, err := s.hostKeyCallback()
	require.NoError(t, err)
	assert.NoError(t, cb("sftp.example:22", sftpRemote, trusted))

	err = cb("sftp.example:22", sftpRemote, other)
	var keyErr *knownhosts.KeyError
	assert.ErrorAs(t, err, &keyErr)
}

func TestSFTPHostKeyConfigErrors(t *testing.T) {
	s := NewSFTPStore("bucket-a", config.SFTPConfig{HostKey: "not a key"}, nil)
	_, err := s.hostKeyCallback()
	assert.Error(t, err)

	s = NewSFTPStore("bucket-a", config.SFTPConfig{KnownHostsFile: filepath.Join(t.TempDir(), "missing")}, nil)
	_, err = s.hostKeyCallback()
	assert.Error(t, err)

	s = NewSFTPStore("bucket-a", config.SFTPConfig{Host: "sftp.example"}, nil)
	cb, err := s.hostKeyCallback()
	require.NoError(t, err)
	assert.NoError(t, cb("sftp.example:22", sftpRemote, newHostKey(t)))
}
