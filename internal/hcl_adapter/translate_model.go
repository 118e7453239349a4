package hcl_adapter

import "github.com/hashicorp/hcl/v2"

// fileRoot is a struct used to decode all top-level blocks from a file.
type fileRoot struct {
	Endpoints []*EndpointBlock `hcl:"endpoint,block"`
	Uploads   []*UploadBlock   `hcl:"upload,block"`
}

// EndpointBlock is the HCL schema of the `endpoint` block. Attributes are
// kept as expressions so that omitted ones can be told apart from zero
// values.
type EndpointBlock struct {
	URL                hcl.Expression `hcl:"url,optional"`
	Transport          hcl.Expression `hcl:"transport,optional"`
	DialTimeout        hcl.Expression `hcl:"dial_timeout,optional"`
	WriteTimeout       hcl.Expression `hcl:"write_timeout,optional"`
	InsecureSkipVerify hcl.Expression `hcl:"insecure_skip_verify,optional"`
	Headers            hcl.Expression `hcl:"headers,optional"`
	Namespace          hcl.Expression `hcl:"namespace,optional"`
}

// UploadBlock is the HCL schema of the `upload` block.
type UploadBlock struct {
	Paths    hcl.Expression `hcl:"paths,optional"`
	Accept   hcl.Expression `hcl:"accept,optional"`
	Repeat   hcl.Expression `hcl:"repeat,optional"`
	WaitAcks hcl.Expression `hcl:"wait_acks,optional"`
}
