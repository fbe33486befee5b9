package mailer

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mbolis/quick-survey/config"
	"github.com/mbolis/quick-survey/log"
)

func TestNewFallsBackToLog(t *testing.T) {
	log.SetOutput(io.Discard)
	if _, ok := New(config.SMTPConfig{}).(LogMailer); !ok {
		t.Fatalf("expected LogMailer without SMTP host")
	}
	if _, ok := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587}).(*SMTPMailer); !ok {
		t.Fatalf("expected SMTPMailer with SMTP host")
	}
}

func TestLogMailer(t *testing.T) {
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	defer log.SetOutput(io.Discard)

	if err := (LogMailer{}).Send(context.Background(), "a@b.co", "Your code", "123456"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "123456") || !strings.Contains(out, "a@b.co") {
		t.Fatalf("log output missing message: %q", out)
	}
}

func TestSMTPMailerRejectsBadSender(t *testing.T) {
	m := &SMTPMailer{cfg: config.SMTPConfig{Host: "smtp.example.com", Port: 587, From: "not an address"}}
	if err := m.Send(context.Background(), "a@b.co", "s", "b"); err == nil {
		t.Fatalf("expected sender error")
	}
}

func TestNewUsesImplicitTLSOnSMTPSPort(t *testing.T) {
	log.SetOutput(io.Discard)
	if m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 465}).(*SMTPMailer); !m.implicitTLS {
		t.Fatalf("port 465 should dial TLS directly")
	}
	if m := New(config.SMTPConfig{Host: "smtp.example.com", Port: 587}).(*SMTPMailer); m.implicitTLS {
		t.Fatalf("port 587 should use STARTTLS")
	}
}

func TestImplicitTLSStartsWithHandshake(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	first := make(chan byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		buf := make([]byte, 1)
		if _, err := conn.Read(buf); err == nil {
			first <- buf[0]
		}
		close(first)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	m := &SMTPMailer{
		cfg:         config.SMTPConfig{Host: "127.0.0.1", Port: port, From: "noreply@example.com"},
		implicitTLS: true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.Send(ctx, "a@b.co", "s", "b"); err == nil {
		t.Fatalf("expected handshake failure against a plain listener")
	}

	// 0x16 opens a TLS handshake record
	if b, ok := <-first; !ok || b != 0x16 {
		t.Fatalf("client did not start with a TLS handshake (got %#x, %v)", b, ok)
	}
}
