package federation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/deemkeen/nodeweave/domain"
	"github.com/deemkeen/nodeweave/fqid"
	"github.com/google/uuid"
	"github.com/hashicorp/go-metrics"
	"golang.org/x/sync/errgroup"
)

type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeUnchanged      Outcome = "unchanged"
	OutcomeForbidden      Outcome = "skipped_forbidden"
	OutcomeRemoteRejected Outcome = "skipped_remote_rejected"
	OutcomeUnreachable    Outcome = "skipped_unreachable"
	OutcomeNotFollower    Outcome = "skipped_not_follower"
	OutcomeFailed         Outcome = "failed"
)

// Activity is one verb applied to one object. LocalID is set when the object
// is stored on this node, so local recipients get a reference instead of a copy.
type Activity struct {
	Verb    Verb
	Object  Object
	LocalID uuid.NullUUID
}

type RecipientResult struct {
	Recipient domain.ActorRef `json:"recipient"`
	Outcome   Outcome         `json:"outcome"`
	Code      int             `json:"code,omitempty"`
	Err       error           `json:"-"`
}

type DeliveryReport struct {
	Results []RecipientResult `json:"results"`
}

func (r DeliveryReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// IsForbidden reports whether every recipient in r was refused by trust rules.
func (r DeliveryReport) IsForbidden() bool {
	return len(r.Results) > 0 && r.Count(OutcomeForbidden) == len(r.Results)
}

type EngineStore interface {
	InboxStore
	ReadAccById(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

// Engine fans an activity out to an explicit set of recipients. Nothing is
// queued or retried; the report only says what happened.
type Engine struct {
	store       EngineStore
	directory   *Directory
	gate        *TrustGate
	client      *PeerClient
	reconciler  *Reconciler
	concurrency int
	msink       metrics.MetricSink
	logger      *log.Logger
}

func NewEngine(store EngineStore, directory *Directory, gate *TrustGate, client *PeerClient, concurrency int, ms metrics.MetricSink) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		store:       store,
		directory:   directory,
		gate:        gate,
		client:      client,
		reconciler:  NewReconciler(store),
		concurrency: concurrency,
		msink:       sinkOrDefault(ms),
		logger:      log.WithPrefix("Delivery"),
	}
}

// Deliver hands act to every recipient once. Recipients are normalized first,
// so a self-host FQID and the matching local ref count as one.
func (e *Engine) Deliver(ctx context.Context, act Activity, recipients []domain.ActorRef) DeliveryReport {
	seen := map[string]bool{}
	var refs []domain.ActorRef
	for _, r := range recipients {
		if r.IsZero() {
			continue
		}
		r = e.directory.Normalize(r)
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		refs = append(refs, r)
	}

	originTrusted := e.gate.Trusts(ctx, act.Object.Origin().ID)

	results := make([]RecipientResult, len(refs))
	g := new(errgroup.Group)
	g.SetLimit(e.concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			var res RecipientResult
			if ref.IsLocal() {
				res = e.deliverLocal(ctx, act, ref, originTrusted)
			} else {
				res = e.deliverRemote(ctx, act, ref)
			}
			res.Recipient = ref
			results[i] = res
			e.record(act, res)
			return nil
		})
	}
	_ = g.Wait()

	return DeliveryReport{Results: results}
}

func (e *Engine) record(act Activity, res RecipientResult) {
	e.msink.IncrCounterWithLabels(MetricDeliveryCount, 1, []metrics.Label{
		LabelOutcome.M(string(res.Outcome)),
		LabelKind.M(string(act.Object.Kind())),
		LabelVerb.M(act.Verb.String()),
	})
	if res.Err != nil {
		e.logger.Warn("Delivery skipped", "recipient", res.Recipient, "object", act.Object.CanonicalID(), "outcome", res.Outcome, "err", res.Err)
	}
}

func (e *Engine) deliverLocal(ctx context.Context, act Activity, ref domain.ActorRef, originTrusted bool) RecipientResult {
	if !originTrusted {
		return RecipientResult{Outcome: OutcomeForbidden, Err: domain.ErrForbidden}
	}
	if _, err := e.store.ReadAccById(ctx, ref.LocalId); err != nil {
		return RecipientResult{Outcome: OutcomeFailed, Err: err}
	}

	var content domain.InboxContent
	if act.LocalID.Valid {
		content = domain.Materialized{Kind: act.Object.Kind(), ObjectId: act.LocalID.UUID}
	} else {
		payload, err := json.Marshal(wireObject(act))
		if err != nil {
			return RecipientResult{Outcome: OutcomeFailed, Err: err}
		}
		content = domain.RemoteSnapshot{Kind: act.Object.Kind(), Payload: payload}
	}
	item := domain.NewInboxItem(ref.LocalId, act.Object.CanonicalID(), content)

	if act.Object.Kind() != domain.KindPost {
		if err := e.store.AppendInboxItem(ctx, item); err != nil {
			return RecipientResult{Outcome: OutcomeFailed, Err: err}
		}
		return RecipientResult{Outcome: OutcomeDelivered}
	}

	applied, err := e.reconciler.Apply(ctx, act.Verb, item)
	if err != nil {
		return RecipientResult{Outcome: OutcomeFailed, Err: err}
	}
	if !applied {
		return RecipientResult{Outcome: OutcomeUnchanged}
	}
	return RecipientResult{Outcome: OutcomeDelivered}
}

func (e *Engine) deliverRemote(ctx context.Context, act Activity, ref domain.ActorRef) RecipientResult {
	host, err := fqid.NormalizeHost(ref.RemoteId)
	if err != nil {
		return RecipientResult{Outcome: OutcomeFailed, Err: err}
	}
	if _, err := e.gate.AuthorizeOutbound(ctx, host); err != nil {
		return RecipientResult{Outcome: OutcomeForbidden, Err: err}
	}

	inbox := strings.TrimRight(ref.RemoteId, "/")
	if post, ok := act.Object.(*PostObject); ok && act.Verb != VerbDelete {
		if vis, _ := post.Vis(); vis == domain.VisibilityFriends {
			following, err := e.client.Check(ctx, inbox+"/followers/"+url.QueryEscape(post.Author.ID))
			if err != nil {
				return classifyPushError(err)
			}
			if !following {
				return RecipientResult{Outcome: OutcomeNotFollower}
			}
		}
	}

	method := http.MethodPost
	switch act.Verb {
	case VerbUpdate:
		method = http.MethodPut
	case VerbDelete:
		method = http.MethodDelete
	}
	if err := e.client.Push(ctx, method, inbox+"/inbox", wireObject(act)); err != nil {
		return classifyPushError(err)
	}
	return RecipientResult{Outcome: OutcomeDelivered}
}

func classifyPushError(err error) RecipientResult {
	var rejected *RemoteRejectedError
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return RecipientResult{Outcome: OutcomeForbidden, Err: err}
	case errors.As(err, &rejected):
		return RecipientResult{Outcome: OutcomeRemoteRejected, Code: rejected.Code, Err: err}
	default:
		return RecipientResult{Outcome: OutcomeUnreachable, Err: err}
	}
}

// wireObject is the object as it travels for act. Deleted posts always
// travel with visibility DELETED and without their body.
func wireObject(act Activity) Object {
	post, ok := act.Object.(*PostObject)
	if !ok || act.Verb != VerbDelete {
		return act.Object
	}
	cp := *post
	cp.Visibility = string(domain.VisibilityDeleted)
	cp.Title = ""
	cp.Description = ""
	cp.Content = ""
	return &cp
}
