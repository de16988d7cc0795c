package feed

import (
	"fmt"
	"io"
	"net/textproto"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
)

// FileStorage destination a finished feed can be published to
type FileStorage interface {
	Exists(fileName string) (ok bool, err error)
	Open(fileName string) (reader io.ReadCloser, err error)
	Create(fileName string) (writer io.WriteCloser, err error)
}

type LocalFileStorage struct {
}

func (fs *LocalFileStorage) Exists(fileName string) (bool, error) {
	_, err := os.Stat(fileName)
	if err != nil && os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
func (fs *LocalFileStorage) Open(fileName string) (io.ReadCloser, error) {
	return os.Open(fileName)
}
func (fs *LocalFileStorage) Create(fileName string) (io.WriteCloser, error) {
	return os.Create(fileName)
}

// FTPFileStorage publishes feeds to a remote FTP endpoint
type FTPFileStorage struct {
	Host        string
	Port        int
	User        string
	Password    string
	ConnTimeout time.Duration
}

func (fs *FTPFileStorage) connect() (*ftp.ServerConn, error) {
	c, err := ftp.DialTimeout(fmt.Sprintf("%s:%d", fs.Host, fs.Port), fs.ConnTimeout)
	if err != nil {
		return nil, err
	}
	err = c.Login(fs.User, fs.Password)
	return c, err
}

func (fs *FTPFileStorage) Exists(fileName string) (bool, error) {
	c, err := fs.connect()
	if c != nil {
		defer c.Quit()
	}
	if err != nil {
		return false, err
	}
	_, err = c.FileSize(fileName)
	if err == nil {
		return true, nil
	}
	if e, ok := err.(*textproto.Error); ok && e.Code == ftp.StatusFileUnavailable {
		return false, nil
	}
	return false, err
}
// remoteReadCloser ties a remote connection's lifetime to the returned
// reader: the connection is torn down only after the caller closes
type remoteReadCloser struct {
	io.ReadCloser
	quit func() error
}

func (r *remoteReadCloser) Close() error {
	err := r.ReadCloser.Close()
	if qerr := r.quit(); err == nil {
		err = qerr
	}
	return err
}

func (fs *FTPFileStorage) Open(fileName string) (io.ReadCloser, error) {
	c, err := fs.connect()
	if err != nil {
		if c != nil {
			c.Quit()
		}
		return nil, err
	}
	r, err := c.Retr(fileName)
	if err != nil {
		c.Quit()
		return nil, err
	}
	return &remoteReadCloser{ReadCloser: r, quit: c.Quit}, nil
}
func (fs *FTPFileStorage) Create(fileName string) (io.WriteCloser, error) {
	c, err := fs.connect()
	if err != nil {
		if c != nil {
			c.Quit()
		}
		return nil, err
	}
	r, w := io.Pipe()
	// Stor consumes the pipe until the returned writer is closed
	go func() {
		if err := c.Stor(fileName, r); err != nil {
			r.CloseWithError(err)
		} else {
			r.Close()
		}
		c.Quit()
	}()
	return w, nil
}
