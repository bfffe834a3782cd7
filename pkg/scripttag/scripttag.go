// Package scripttag turns build configuration plus a single load request into
// the attribute set of a script element. It never touches a document.
package scripttag

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/withgalaxy/lazyload/pkg/config"
	"github.com/withgalaxy/lazyload/pkg/dom"
)

const (
	AttrSrc           = "src"
	AttrType          = "type"
	AttrCharset       = "charset"
	AttrTimeout       = "timeout"
	AttrNonce         = "nonce"
	AttrFetchPriority = "fetchpriority"
	AttrCrossOrigin   = "crossorigin"
	// AttrIdentity carries "<uniqueName>:<key>" so bundles sharing a page can
	// recognise each other's chunks.
	AttrIdentity = "data-lazyload"
	// AttrExternal marks elements created for lazily compiled modules.
	AttrExternal = "data-lazyload-external"
	AttrChunk    = "data-lazyload-chunk"
)

type FetchPriority string

const (
	PriorityHigh FetchPriority = "high"
	PriorityLow  FetchPriority = "low"
	PriorityAuto FetchPriority = "auto"
)

func (p FetchPriority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityLow, PriorityAuto:
		return true
	}
	return false
}

type Request struct {
	URL           string
	Key           string
	ChunkID       string
	FetchPriority FetchPriority
}

// Env is the execution context the element is created in.
type Env struct {
	PageURL string
	Nonce   string
	// CreateScriptURL is the trusted-types policy applied to src when the
	// createScriptUrl feature is enabled.
	CreateScriptURL func(string) string
}

type Attr struct {
	Name  string
	Value string
}

type Descriptor struct {
	Attrs []Attr
}

func (d Descriptor) Get(name string) (string, bool) {
	for _, a := range d.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Apply copies every attribute onto el in order.
func (d Descriptor) Apply(el dom.Element) {
	for _, a := range d.Attrs {
		el.SetAttr(a.Name, a.Value)
	}
}

// IdentityValue returns the identity attribute value for key, or "" when the
// build has no unique name.
func IdentityValue(uniqueName, key string) string {
	if uniqueName == "" {
		return ""
	}
	return uniqueName + ":" + key
}

func Build(cfg *config.Config, req Request, env Env) Descriptor {
	var d Descriptor
	add := func(name, value string) {
		d.Attrs = append(d.Attrs, Attr{Name: name, Value: value})
	}

	if cfg.Output.ScriptType != "" {
		add(AttrType, cfg.Output.ScriptType)
	}
	if cfg.Output.Charset {
		add(AttrCharset, "utf-8")
	}
	add(AttrTimeout, strconv.FormatFloat(cfg.Output.TimeoutSeconds(), 'f', -1, 64))
	if env.Nonce != "" {
		add(AttrNonce, env.Nonce)
	}
	if cfg.Output.UniqueName != "" && req.Key != "" {
		add(AttrIdentity, IdentityValue(cfg.Output.UniqueName, req.Key))
	}
	if cfg.Features.FetchPriority && req.FetchPriority != "" {
		add(AttrFetchPriority, string(req.FetchPriority))
	}

	src := req.URL
	if cfg.Features.CreateScriptURL && env.CreateScriptURL != nil {
		src = env.CreateScriptURL(src)
	}
	add(AttrSrc, src)

	switch policy := cfg.Output.CrossOriginLoading; {
	case policy == config.CrossOriginUseCredentials:
		add(AttrCrossOrigin, string(policy))
	case policy != config.CrossOriginNone && crossOrigin(env.PageURL, src):
		add(AttrCrossOrigin, string(policy))
	}

	if cfg.Features.ExternalSupport {
		add(AttrExternal, "true")
		if req.ChunkID != "" {
			add(AttrChunk, req.ChunkID)
		}
	}

	return d
}

// crossOrigin reports whether src, resolved against the page, is served from
// a different origin than the page.
func crossOrigin(pageURL, src string) bool {
	page, err := url.Parse(pageURL)
	if err != nil {
		return true
	}
	ref, err := url.Parse(src)
	if err != nil {
		return true
	}
	resolved := page.ResolveReference(ref)
	origin := page.Scheme + "://" + page.Host + "/"
	return !strings.HasPrefix(resolved.String(), origin)
}
