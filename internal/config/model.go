package config

import (
	"maps"
	"time"
)

// Model is the unified representation of a configuration file.
type Model struct {
	Endpoint Endpoint
	Upload   Upload
}

// Endpoint describes where and how batches are sent.
type Endpoint struct {
	URL          string
	Transport    string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	// InsecureSkipVerify is nil when the file does not mention it.
	InsecureSkipVerify *bool
	Headers            map[string]string
	Namespace          string
}

// Upload describes which files make up the batch and how it is repeated.
type Upload struct {
	Paths    []string
	Accept   []string
	Repeat   int
	WaitAcks time.Duration
}

// Merge overlays every field that o sets onto m.
func (m *Model) Merge(o *Model) {
	if o == nil {
		return
	}
	e := &m.Endpoint
	if o.Endpoint.URL != "" {
		e.URL = o.Endpoint.URL
	}
	if o.Endpoint.Transport != "" {
		e.Transport = o.Endpoint.Transport
	}
	if o.Endpoint.DialTimeout != 0 {
		e.DialTimeout = o.Endpoint.DialTimeout
	}
	if o.Endpoint.WriteTimeout != 0 {
		e.WriteTimeout = o.Endpoint.WriteTimeout
	}
	if o.Endpoint.InsecureSkipVerify != nil {
		v := *o.Endpoint.InsecureSkipVerify
		e.InsecureSkipVerify = &v
	}
	if len(o.Endpoint.Headers) > 0 {
		if e.Headers == nil {
			e.Headers = make(map[string]string, len(o.Endpoint.Headers))
		}
		maps.Copy(e.Headers, o.Endpoint.Headers)
	}
	if o.Endpoint.Namespace != "" {
		e.Namespace = o.Endpoint.Namespace
	}

	u := &m.Upload
	if len(o.Upload.Paths) > 0 {
		u.Paths = append([]string(nil), o.Upload.Paths...)
	}
	if len(o.Upload.Accept) > 0 {
		u.Accept = append([]string(nil), o.Upload.Accept...)
	}
	if o.Upload.Repeat != 0 {
		u.Repeat = o.Upload.Repeat
	}
	if o.Upload.WaitAcks != 0 {
		u.WaitAcks = o.Upload.WaitAcks
	}
}
