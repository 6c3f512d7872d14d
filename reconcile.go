package ldapkit

import (
	"context"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Action is the reconciliation decision for one entry.
type Action int

const (
	ActionNone Action = iota
	ActionAdd
	ActionModify
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionAdd:
		return "add"
	case ActionModify:
		return "modify"
	default:
		return "unknown"
	}
}

// Result reports the outcome of reconciling one entry. In dry-run mode the
// Action and Modifications describe what a live run would have done.
type Result struct {
	DN            string
	Action        Action
	Modifications ModificationList
	Err           error
}

// Reconciler decides, for each desired entry, whether the directory needs
// an add or a modify, and applies the minimal modification list through its
// Handler. The Reconciler borrows entries to compute deltas and does not
// retain them.
type Reconciler struct {
	handler *Handler
	log     zerolog.Logger

	// DryRun computes decisions and operation lists but suppresses the
	// side-effecting add/modify call. The decision path is identical to a
	// live run.
	DryRun bool
}

// NewReconciler returns a Reconciler writing through h.
func NewReconciler(h *Handler) *Reconciler {
	return &Reconciler{
		handler: h,
		log:     h.log,
	}
}

// Reconcile brings the directory entry identified by e's DN in line with e.
// The connection is released afterwards regardless of outcome.
func (r *Reconciler) Reconcile(ctx context.Context, e *Entry) Result {
	defer r.handler.Unbind()
	return r.reconcile(ctx, r.log, e)
}

// ReconcileAll processes the given entries strictly one at a time and
// independently: a failure on one entry, including an invalid DN, does not
// stop the others. One Result is returned per entry, in input order.
func (r *Reconciler) ReconcileAll(ctx context.Context, entries []*Entry) []Result {
	log := r.log.With().Str("run_id", uuid.NewString()).Logger()
	log.Debug().Int("entries", len(entries)).Bool("dry_run", r.DryRun).Msg("starting reconciliation")

	results := make([]Result, 0, len(entries))
	for _, e := range entries {
		results = append(results, r.reconcile(ctx, log, e))
		r.handler.Unbind()
	}

	return results
}

func (r *Reconciler) reconcile(ctx context.Context, log zerolog.Logger, e *Entry) Result {
	dn := e.DN()

	rdn, parent, err := SplitDN(dn)
	if err != nil {
		log.Error().Str("dn", dn).Err(err).Msg("DN is not valid")
		return Result{DN: dn, Err: err}
	}

	filter, err := rdnFilter(rdn)
	if err != nil {
		log.Error().Str("dn", dn).Err(err).Msg("DN is not valid")
		return Result{DN: dn, Err: err}
	}

	// Isolate the one entry of interest by its RDN under the parent base,
	// requesting all attributes in raw form.
	existing, err := r.handler.SearchRaw(ctx, &SearchRequest{
		BaseDN: parent,
		Scope:  ScopeSingleLevel,
		Filter: filter,
	})
	if err != nil {
		return Result{DN: dn, Err: err}
	}

	if len(existing) == 0 {
		return r.create(ctx, log, e)
	}
	return r.update(ctx, log, e, existing[0])
}

// create builds an add list from the desired entry's non-empty attributes.
func (r *Reconciler) create(ctx context.Context, log zerolog.Logger, e *Entry) Result {
	mods := AddModlist(e.Attributes())
	if len(mods) == 0 {
		log.Debug().Str("dn", e.DN()).Msg("nothing to add")
		return Result{DN: e.DN(), Action: ActionNone}
	}

	result := Result{DN: e.DN(), Action: ActionAdd, Modifications: mods}

	if r.DryRun {
		log.Info().Str("dn", e.DN()).Int("attributes", len(mods)).Msg("dry run: would add entry")
		return result
	}

	result.Err = r.handler.Add(ctx, e.DN(), mods)
	return result
}

// update overlays the desired attributes onto the live snapshot and applies
// the delta between the two.
func (r *Reconciler) update(ctx context.Context, log zerolog.Logger, e *Entry, existing *ldap.Entry) Result {
	snapshot := FromLDAPEntry(existing).Attributes()

	merged := snapshot.Clone()
	merged.Merge(e.Attributes())

	mods := ModifyModlist(snapshot, merged)
	if len(mods) == 0 {
		log.Debug().Str("dn", e.DN()).Msg("nothing to modify")
		return Result{DN: e.DN(), Action: ActionNone}
	}

	result := Result{DN: e.DN(), Action: ActionModify, Modifications: mods}

	if r.DryRun {
		log.Info().Str("dn", e.DN()).Int("operations", len(mods)).Msg("dry run: would modify entry")
		return result
	}

	result.Err = r.handler.Modify(ctx, e.DN(), mods)
	return result
}
