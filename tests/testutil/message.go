// Package testutil builds the notification-email fixtures shared by
// package tests.
package testutil

import (
	"bytes"
	"fmt"
	"mime/quotedprintable"
	"testing"
)

// HTMLEmail builds a multipart/alternative message whose HTML part is
// quoted-printable encoded, the way listing notifications arrive.
func HTMLEmail(t *testing.T, htmlBody string) []byte {
	t.Helper()

	var msg bytes.Buffer
	msg.WriteString("From: rental-instant-updates@mail.zillow.com\r\n")
	msg.WriteString("To: hunter@example.com\r\n")
	msg.WriteString("Subject: New Listing Alert\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=\"frontier\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString("--frontier\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString("A new listing matched your search.\r\n")
	msg.WriteString("--frontier\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	msg.WriteString("\r\n")
	msg.Write(encodeQP(t, htmlBody))
	msg.WriteString("\r\n--frontier--\r\n")

	return msg.Bytes()
}

// HTMLOnlyEmail builds a single-part message whose whole body is
// quoted-printable HTML.
func HTMLOnlyEmail(t *testing.T, htmlBody string) []byte {
	t.Helper()

	var msg bytes.Buffer
	msg.WriteString("From: rental-instant-updates@mail.zillow.com\r\n")
	msg.WriteString("To: hunter@example.com\r\n")
	msg.WriteString("Subject: New Listing Alert\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	msg.WriteString("\r\n")
	msg.Write(encodeQP(t, htmlBody))
	msg.WriteString("\r\n")

	return msg.Bytes()
}

// PlainEmail builds a message carrying only a text/plain part.
func PlainEmail(t *testing.T, text string) []byte {
	t.Helper()

	var msg bytes.Buffer
	msg.WriteString("From: rental-instant-updates@mail.zillow.com\r\n")
	msg.WriteString("To: hunter@example.com\r\n")
	msg.WriteString("Subject: New Listing Alert\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(text)
	msg.WriteString("\r\n")

	return msg.Bytes()
}

// ListingHTML renders notification markup with the four labeled blocks
// the extractor recognizes, in the order the real emails use.
func ListingHTML(url, imageURL, price, facts, address string) string {
	return fmt.Sprintf(`<html><body>
<div class="listing">
  <a aria-label="Property photo" href=%q>
    <div class="hero-property-image" background=%q></div>
  </a>
  <div aria-label="Property price">%s</div>
  <div aria-label="Property facts and features">%s</div>
  <div aria-label="Property address">%s</div>
</div>
</body></html>`, url, imageURL, price, facts, address)
}

func encodeQP(t *testing.T, s string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatalf("encoding quoted-printable: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing quoted-printable writer: %v", err)
	}
	return buf.Bytes()
}
