package writerbackends

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"mediaforge/config"
	"mediaforge/logger"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPStore keeps objects under root/container on an SFTP server. Each
// operation opens its own SSH session. Transfer URLs go through the relay.
type SFTPStore struct {
	cfg       config.SFTPConfig
	container string
	relay     *Relay

	insecureOnce sync.Once
}

func NewSFTPStore(container string, cfg config.SFTPConfig, relay *Relay) *SFTPStore {
	if cfg.Port == "" {
		cfg.Port = "22"
	}
	return &SFTPStore{cfg: cfg, container: container, relay: relay}
}

func (s *SFTPStore) Scheme() string    { return "sftp" }
func (s *SFTPStore) Container() string { return s.container }

func (s *SFTPStore) remotePath(object string) string {
	return path.Join(s.cfg.Root, s.container, path.Clean("/"+object))
}

func (s *SFTPStore) IssueUploadURL(ctx context.Context, object, contentType string, expiry time.Duration) (string, error) {
	return s.relay.URL(object, http.MethodPut, contentTypeOr(contentType), expiry)
}

func (s *SFTPStore) IssueDownloadURL(ctx context.Context, object string, expiry time.Duration) (string, error) {
	return s.relay.URL(object, http.MethodGet, "", expiry)
}

// hostKeyCallback pins the configured host key, or checks a known_hosts
// file. Without either the server key is not verified.
func (s *SFTPStore) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if s.cfg.HostKey != "" {
		key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(s.cfg.HostKey))
		if err != nil {
			return nil, fmt.Errorf("parse sftp host key: %w", err)
		}
		return ssh.FixedHostKey(key), nil
	}
	if s.cfg.KnownHostsFile != "" {
		cb, err := knownhosts.New(s.cfg.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("load known_hosts %s: %w", s.cfg.KnownHostsFile, err)
		}
		return cb, nil
	}
	s.insecureOnce.Do(func() {
		logger.Warnf("SFTP host key for %s is not verified; set SFTP_HOST_KEY or SFTP_KNOWN_HOSTS", s.cfg.Host)
	})
	return ssh.InsecureIgnoreHostKey(), nil
}

func (s *SFTPStore) authMethods() ([]ssh.AuthMethod, error) {
	if s.cfg.PrivateKey != "" {
		// try to decode as base64, fall back to raw
		keyBytes, err := base64.StdEncoding.DecodeString(s.cfg.PrivateKey)
		if err != nil {
			keyBytes = []byte(s.cfg.PrivateKey)
		}
		signer, err := ssh.ParsePrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if s.cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(s.cfg.Password)}, nil
	}
	return nil, fmt.Errorf("no sftp auth method configured; set password or private key")
}

// session dials the server and runs fn with a live client.
func (s *SFTPStore) session(ctx context.Context, fn func(*sftp.Client) error) error {
	if s.cfg.Host == "" || s.cfg.User == "" {
		return fmt.Errorf("sftp host and user must be configured")
	}
	auths, err := s.authMethods()
	if err != nil {
		return err
	}
	hostKey, err := s.hostKeyCallback()
	if err != nil {
		return err
	}

	clientCfg := &ssh.ClientConfig{
		User:            s.cfg.User,
		Auth:            auths,
		HostKeyCallback: hostKey,
		Timeout:         10 * time.Second,
	}
	addr := net.JoinHostPort(s.cfg.Host, s.cfg.Port)

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial tcp %s: %w", addr, err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	sshClient := ssh.NewClient(clientConn, chans, reqs)
	defer sshClient.Close()

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		return fmt.Errorf("create sftp client: %w", err)
	}
	defer client.Close()

	return fn(client)
}

func (s *SFTPStore) Fetch(ctx context.Context, object string, w io.Writer) error {
	p := s.remotePath(object)
	return s.session(ctx, func(c *sftp.Client) error {
		f, err := c.Open(p)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("open remote file %s: %w", p, ErrNotFound)
			}
			return fmt.Errorf("open remote file %s: %w", p, err)
		}
		defer f.Close()

		if _, err := io.Copy(w, f); err != nil {
			return fmt.Errorf("read remote file %s: %w", p, err)
		}
		return nil
	})
}

func (s *SFTPStore) Store(ctx context.Context, object string, r io.Reader, contentType string) error {
	p := s.remotePath(object)
	return s.session(ctx, func(c *sftp.Client) error {
		if err := c.MkdirAll(path.Dir(p)); err != nil {
			return fmt.Errorf("ensure remote dir %s: %w", path.Dir(p), err)
		}

		f, err := c.Create(p)
		if err != nil {
			return fmt.Errorf("create remote file %s: %w", p, err)
		}
		defer f.Close()

		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("copy to remote file %s: %w", p, err)
		}

		logger.Infof("Successfully uploaded '%s' to %s", p, s.cfg.Host)
		return nil
	})
}

func (s *SFTPStore) Delete(ctx context.Context, object string) error {
	p := s.remotePath(object)
	return s.session(ctx, func(c *sftp.Client) error {
		if err := c.Remove(p); err != nil {
			if errors.Is(err, os.ErrNotExist) || strings.Contains(err.Error(), "not exist") {
				return fmt.Errorf("remove remote file %s: %w", p, ErrNotFound)
			}
			return fmt.Errorf("remove remote file %s: %w", p, err)
		}
		return nil
	})
}

func (s *SFTPStore) Close() error { return nil }
