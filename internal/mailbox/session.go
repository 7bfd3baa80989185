package mailbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Config holds the connection settings for one IMAP account. The server
// must speak implicit TLS; the platform trust store verifies it.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
}

// Addr returns the dial address for the configured server.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

// Handle identifies one message inside the currently selected mailbox.
// Handles come out of SearchUnseen and stay valid for the session that
// produced them; they are not meant to be retained across poll cycles.
type Handle imap.UID

// Session owns one live IMAP connection. It is not safe for concurrent
// use; a single poll loop drives it.
type Session struct {
	client  *imapclient.Client
	mailbox string
	closed  bool
}

// Dial opens a TLS connection to the configured server and authenticates.
// The caller owns the returned session and must Close it. Bad credentials
// surface as an AuthError, everything else as a ConnectError.
func Dial(_ context.Context, cfg Config) (*Session, error) {
	client, err := imapclient.DialTLS(cfg.Addr(), nil)
	if err != nil {
		return nil, &ConnectError{Addr: cfg.Addr(), Err: err}
	}

	if err := client.Login(cfg.Username, cfg.Password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &AuthError{Username: cfg.Username, Err: err}
	}

	return &Session{client: client}, nil
}

// Select opens the named mailbox, read-write unless readOnly is set. It
// must be called before SearchUnseen, Fetch or MarkSeen; flag mutations
// only stick on a read-write selection.
func (s *Session) Select(_ context.Context, mailbox string, readOnly bool) error {
	var opts *imap.SelectOptions
	if readOnly {
		opts = &imap.SelectOptions{ReadOnly: true}
	}

	if _, err := s.client.Select(mailbox, opts).Wait(); err != nil {
		return &MailboxError{Mailbox: mailbox, Op: "select", Err: err}
	}

	s.mailbox = mailbox
	return nil
}

// SearchUnseen returns handles for the unseen messages from sender whose
// subject contains subject, in ascending mailbox order. No matches is an
// empty result, not an error.
func (s *Session) SearchUnseen(_ context.Context, sender, subject string) ([]Handle, error) {
	data, err := s.client.UIDSearch(searchCriteria(sender, subject), nil).Wait()
	if err != nil {
		return nil, &MailboxError{Mailbox: s.mailbox, Op: "search", Err: err}
	}

	uids := data.AllUIDs()
	handles := make([]Handle, 0, len(uids))
	for _, uid := range uids {
		handles = append(handles, Handle(uid))
	}
	return handles, nil
}

// searchCriteria builds the FROM + SUBJECT + UNSEEN conjunction used by
// SearchUnseen.
func searchCriteria(sender, subject string) *imap.SearchCriteria {
	return &imap.SearchCriteria{
		Header: []imap.SearchCriteriaHeaderField{
			{Key: "From", Value: sender},
			{Key: "Subject", Value: subject},
		},
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
}

// Fetch retrieves the full transport-format bytes of one message. The
// body section is fetched with Peek, so retrieval alone never sets the
// seen flag; that is MarkSeen's job.
func (s *Session) Fetch(_ context.Context, h Handle) ([]byte, error) {
	uidSet := imap.UIDSetNum(imap.UID(h))

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}
	fetchOpts := &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := s.client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, &FetchError{Handle: h, Err: errors.New("message not found")}
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, &FetchError{Handle: h, Err: err}
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, &FetchError{Handle: h, Err: errors.New("server returned no body")}
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, &FetchError{Handle: h, Err: err}
	}

	return raw, nil
}

// MarkSeen adds the \Seen flag to the message. The store is silent and
// idempotent: marking an already-seen message succeeds without effect.
func (s *Session) MarkSeen(_ context.Context, h Handle) error {
	uidSet := imap.UIDSetNum(imap.UID(h))

	storeCmd := s.client.Store(uidSet, &imap.StoreFlags{
		Op:     imap.StoreFlagsAdd,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &FlagError{Handle: h, Err: err}
	}
	return nil
}

// Close logs out and releases the connection. It is safe to call more
// than once and safe on a session whose connection already dropped.
func (s *Session) Close() error {
	if s == nil || s.client == nil || s.closed {
		return nil
	}
	s.closed = true

	if err := s.client.Logout().Wait(); err != nil {
		_ = s.client.Close()
		return fmt.Errorf("logging out: %w", err)
	}
	return nil
}
