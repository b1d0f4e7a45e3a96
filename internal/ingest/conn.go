package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	apperrors "snapsort/internal/errors"
	"snapsort/internal/filter"
	"snapsort/internal/logger"
)

// maxHeaderBytes bounds the header line so a hostile client cannot grow the
// buffer without limit.
const maxHeaderBytes = 64 * 1024

// bodyChunkBytes is the read granularity for upload bodies.
const bodyChunkBytes = 4096

// uploadHeader is the JSON line a device sends before the image bytes.
// Size is optional: when positive the body is length-prefixed and read
// exactly; when zero the body runs until EOF or idle timeout. Timestamp is
// accepted for compatibility but the server clocks uploads itself.
type uploadHeader struct {
	Filename      string `json:"filename"`
	Timestamp     string `json:"timestamp"`
	Filter        string `json:"filter"`
	FilterDisplay string `json:"filter_display"`
	Size          int64  `json:"size"`
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	connID := uuid.NewString()
	log := logger.WithFields(logrus.Fields{
		"conn_id": connID,
		"remote":  conn.RemoteAddr().String(),
	})
	log.Debug("Connection accepted")

	reader := bufio.NewReader(conn)

	header, err := s.readHeader(conn, reader)
	if err != nil {
		log.WithError(err).Warn("Rejected upload header")
		return
	}

	filename, err := s.validator.Sanitize(header.Filename)
	if err != nil {
		log.WithError(err).WithField("filename", header.Filename).Warn("Rejected upload filename")
		return
	}
	log = log.WithField("filename", filename)

	body, err := s.readBody(conn, reader, header.Size)
	if err != nil {
		log.WithError(err).Warn("Failed to read upload body")
		return
	}
	if int64(len(body)) <= s.cfg.MinPayloadBytes {
		log.WithField("bytes", len(body)).Warn("Discarding undersized upload")
		return
	}

	stagingPath := filepath.Join(s.cfg.StagingDir, filename)
	if err := os.WriteFile(stagingPath, body, 0o644); err != nil {
		log.WithError(err).Error("Failed to stage upload")
		return
	}

	filterID := header.Filter
	if filterID == "" {
		filterID = filter.Normal
	}
	display := header.FilterDisplay
	if display == "" {
		// The display default is a fixed constant, not derived from the
		// filter id; devices that apply a filter send their own display name.
		display = filter.DisplayName(filter.Normal)
	}

	up := Upload{
		ConnID:        connID,
		Filename:      filename,
		StagingPath:   stagingPath,
		Filter:        filterID,
		FilterDisplay: display,
		ReceivedAt:    time.Now(),
	}
	log.WithFields(logrus.Fields{"bytes": len(body), "filter": filterID}).Info("Upload staged")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ProcessTimeout)
	defer cancel()

	if err := s.processor.Process(ctx, up); err != nil {
		log.WithError(err).Error("Failed to process upload")
		// Staging must not accumulate residue
		if removeErr := os.Remove(stagingPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.WithError(removeErr).Warn("Failed to clean staged upload")
		}
	}
}

// readHeader reads and parses the LF-terminated JSON header line. Any
// failure here aborts the connection before it can touch disk.
func (s *Server) readHeader(conn net.Conn, r *bufio.Reader) (uploadHeader, error) {
	line := make([]byte, 0, 256)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return uploadHeader{}, apperrors.NewTransportError("failed to arm read deadline", err)
		}
		b, err := r.ReadByte()
		if err != nil {
			return uploadHeader{}, apperrors.NewTransportError("connection ended before header completed", err)
		}
		if b == '\n' {
			break
		}
		line = append(line, b)
		if len(line) > maxHeaderBytes {
			return uploadHeader{}, apperrors.NewValidationError("header line too long", nil)
		}
	}

	var header uploadHeader
	if err := json.Unmarshal(bytes.TrimSpace(line), &header); err != nil {
		return uploadHeader{}, apperrors.NewValidationError("malformed header JSON", err)
	}
	if header.Size < 0 {
		return uploadHeader{}, apperrors.NewValidationError("negative body size", nil)
	}
	return header, nil
}

// readBody drains the image bytes. With size framing the read is exact and
// an early EOF or stall is a protocol violation. Without it, the body runs
// until the sender closes or goes idle; bytes already received always
// count, because capture devices often neither close cleanly nor signal
// length.
func (s *Server) readBody(conn net.Conn, r *bufio.Reader, size int64) ([]byte, error) {
	body := make([]byte, 0, bodyChunkBytes)
	chunk := make([]byte, bodyChunkBytes)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return nil, apperrors.NewTransportError("failed to arm read deadline", err)
		}
		n, err := r.Read(chunk)
		body = append(body, chunk[:n]...)

		if size > 0 && int64(len(body)) >= size {
			return body[:size], nil
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if size > 0 {
				return nil, apperrors.NewTransportError("connection closed before declared size arrived", err)
			}
			return body, nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			if size > 0 {
				return nil, apperrors.NewTransportError("timed out before declared size arrived", err)
			}
			return body, nil
		}
		return nil, apperrors.NewTransportError("failed to read upload body", err)
	}
}
