package diagnostics

import (
	"github.com/hashicorp/go-hclog"

	"github.com/scan-io-git/mettalint/internal/decoder"
	"github.com/scan-io-git/mettalint/internal/host"
)

// Sink is the host-side display of diagnostics.
type Sink interface {
	Set(doc host.Document, diags []Diagnostic)
	Delete(doc host.Document)
}

// DiscardSink drops every publication; the Store remains the source of truth.
type DiscardSink struct{}

func (DiscardSink) Set(host.Document, []Diagnostic) {}
func (DiscardSink) Delete(host.Document)            {}

// Reconciler converts findings into diagnostics and owns the Store.
type Reconciler struct {
	source string
	store  *Store
	sink   Sink
	logger hclog.Logger
}

// NewReconciler creates a Reconciler publishing to sink with the given source tag.
func NewReconciler(source string, sink Sink, logger hclog.Logger) *Reconciler {
	if sink == nil {
		sink = DiscardSink{}
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reconciler{
		source: source,
		store:  NewStore(),
		sink:   sink,
		logger: logger,
	}
}

// Store exposes the diagnostic store for reading.
func (r *Reconciler) Store() *Store {
	return r.store
}

// Convert maps findings to diagnostics without publishing them.
func (r *Reconciler) Convert(findings []decoder.Finding) []Diagnostic {
	diags := make([]Diagnostic, 0, len(findings))
	for _, f := range findings {
		diags = append(diags, FromFinding(f, r.source))
	}
	return diags
}

// Reconcile replaces the whole diagnostic set of doc. Zero findings publish an empty set.
func (r *Reconciler) Reconcile(doc host.Document, findings []decoder.Finding) []Diagnostic {
	diags := r.Convert(findings)
	r.store.replace(doc.Key(), diags)
	r.sink.Set(doc, append([]Diagnostic{}, diags...))
	r.logger.Debug("diagnostics published", "document", doc.Key(), "count", len(diags))
	return diags
}

// Remove drops the entry of doc from the store and the sink.
func (r *Reconciler) Remove(doc host.Document) {
	r.store.remove(doc.Key())
	r.sink.Delete(doc)
	r.logger.Debug("diagnostics removed", "document", doc.Key())
}
