package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vigia-social/vigia/models"
	"github.com/vigia-social/vigia/realtime"
)

// ContentStore is the slice of the content repository the orchestrator needs:
// atomic state resolution plus the lookups for recipient resolution.
type ContentStore interface {
	SetModerationState(ctx context.Context, kind models.ContentKind, id uint, state models.ModerationState) (bool, error)
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	GetComment(ctx context.Context, id uint) (*models.Comment, error)
	AuthorName(ctx context.Context, uid models.Uid) (string, error)
}

// Notifier delivers an envelope to a recipient's live connections.
type Notifier interface {
	Deliver(recipient models.Uid, env *realtime.Envelope) int
}

// BlobDeleter removes stored media, best-effort.
type BlobDeleter interface {
	Delete(ctx context.Context, url string) error
}

// Orchestrator drives content items from pending to a terminal moderation
// state and fans the outcome out to the right recipients. Classification runs
// on a fixed pool of workers so the creation path never waits on it.
type Orchestrator struct {
	store      ContentStore
	notifier   Notifier
	classifier Classifier
	blobs      BlobDeleter

	timeout time.Duration
	feeder  chan Item

	// in-flight item keys, so the same item is never classified twice
	// concurrently
	lk       sync.Mutex
	inflight map[string]struct{}

	wg  sync.WaitGroup
	log *slog.Logger
}

type OrchestratorConfig struct {
	Workers int
	Queue   int
	Timeout time.Duration
	Blobs   BlobDeleter // optional
}

// NewOrchestrator builds the orchestrator and starts its workers.
func NewOrchestrator(store ContentStore, notifier Notifier, classifier Classifier, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Queue <= 0 {
		cfg.Queue = 256
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	o := &Orchestrator{
		store:      store,
		notifier:   notifier,
		classifier: classifier,
		blobs:      cfg.Blobs,
		timeout:    cfg.Timeout,
		feeder:     make(chan Item, cfg.Queue),
		inflight:   make(map[string]struct{}),
		log:        slog.Default().With("system", "moderation"),
	}

	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	workersActive.Set(float64(cfg.Workers))

	return o
}

// Shutdown stops accepting work and waits for in-flight classifications.
func (o *Orchestrator) Shutdown() {
	close(o.feeder)
	o.wg.Wait()
	o.log.Info("moderation orchestrator shut down")
}

// ProcessNewPost enqueues a freshly persisted pending post for
// classification. Called after the creator already has their pending
// acknowledgment in hand.
func (o *Orchestrator) ProcessNewPost(ctx context.Context, post *models.Post) error {
	return o.enqueue(ItemFromPost(post))
}

// ProcessNewComment notifies the parent content's author that a comment or
// reply arrived, then enqueues the comment for classification. The recipient
// is resolved at creation time; creation validation already guarantees the
// parent is approved and the recipient is not the comment's own author.
func (o *Orchestrator) ProcessNewComment(ctx context.Context, comment *models.Comment) error {
	item := ItemFromComment(comment)

	if err := o.notifyCreated(ctx, comment); err != nil {
		// the comment still gets moderated; the creation notification is
		// best-effort like all delivery
		o.log.Warn("creation notification failed", "comment", comment.ID, "err", err)
	}

	return o.enqueue(item)
}

func (o *Orchestrator) notifyCreated(ctx context.Context, comment *models.Comment) error {
	authorName, err := o.store.AuthorName(ctx, comment.Author)
	if err != nil {
		return err
	}

	commentData := map[string]any{
		"id":   comment.ID,
		"body": comment.Body,
		"author": map[string]any{
			"id":   comment.Author,
			"name": authorName,
		},
	}

	if comment.Parent != nil {
		parent, err := o.store.GetComment(ctx, *comment.Parent)
		if err != nil {
			return err
		}
		env := realtime.NewEnvelope(realtime.NotifNewReply, parent.Author, map[string]any{
			"parentCommentId": parent.ID,
			"postId":          comment.Post,
			"reply":           commentData,
		})
		o.notifier.Deliver(parent.Author, env)
		return nil
	}

	post, err := o.store.GetPost(ctx, comment.Post)
	if err != nil {
		return err
	}
	env := realtime.NewEnvelope(realtime.NotifNewComment, post.Author, map[string]any{
		"postId":  post.ID,
		"comment": commentData,
	})
	o.notifier.Deliver(post.Author, env)
	return nil
}

func (o *Orchestrator) enqueue(item Item) error {
	select {
	case o.feeder <- item:
		itemsQueued.Inc()
		return nil
	default:
		return fmt.Errorf("moderation queue full, dropping %s %d", item.Kind, item.ID)
	}
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for item := range o.feeder {
		o.process(item)
	}
}

func (o *Orchestrator) process(item Item) {
	o.lk.Lock()
	if _, dup := o.inflight[item.key()]; dup {
		o.lk.Unlock()
		o.log.Warn("item already being moderated, skipping", "kind", item.Kind, "id", item.ID)
		return
	}
	o.inflight[item.key()] = struct{}{}
	o.lk.Unlock()

	defer func() {
		o.lk.Lock()
		delete(o.inflight, item.key())
		o.lk.Unlock()
	}()

	verdict, err := o.classify(item)
	if err != nil {
		// deny-by-default: a classifier failure, timeout, or panic must
		// never leave the item pending indefinitely
		o.log.Error("classification failed, rejecting item",
			"kind", item.Kind, "id", item.ID, "err", err)
		classifierFailures.Inc()
		verdict = VerdictRejected
	}

	// the classification context may already be expired (that is how a
	// timeout reaches this point), so the verdict is applied under its own
	// deadline
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	o.resolve(ctx, item, verdict)
	itemsProcessed.Inc()
}

// classify runs the classifier under the per-item timeout. Classifiers run
// arbitrary code; a panic comes back as an error so one bad item cannot kill
// the worker or dodge resolution.
func (o *Orchestrator) classify(item Item) (verdict Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("classifier panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	return o.classifier.Classify(ctx, Input{Text: item.Text, MediaURL: item.MediaURL})
}

// resolve applies the verdict and notifies the item's author of the outcome.
// The state write is conditional on the item still being pending, so a second
// resolution of the same item is a no-op and produces no duplicate
// notification.
func (o *Orchestrator) resolve(ctx context.Context, item Item, verdict Verdict) {
	state := models.StateRejected
	notifType := realtime.NotifContentRejected
	if verdict == VerdictApproved {
		state = models.StateApproved
		notifType = realtime.NotifContentApproved
	}

	changed, err := o.store.SetModerationState(ctx, item.Kind, item.ID, state)
	if err != nil {
		o.log.Error("applying moderation verdict failed",
			"kind", item.Kind, "id", item.ID, "verdict", verdict, "err", err)
		return
	}
	if !changed {
		o.log.Info("item already resolved", "kind", item.Kind, "id", item.ID)
		return
	}

	verdicts.WithLabelValues(string(item.Kind), string(state)).Inc()
	o.log.Info("moderation resolved", "kind", item.Kind, "id", item.ID, "state", state)

	env := realtime.NewEnvelope(notifType, item.Author, map[string]any{
		"kind":    item.Kind,
		"id":      item.ID,
		"state":   state,
		"message": outcomeMessage(item.Kind, state),
	})
	o.notifier.Deliver(item.Author, env)

	if state == models.StateRejected && item.MediaURL != "" && o.blobs != nil {
		if err := o.blobs.Delete(ctx, item.MediaURL); err != nil {
			o.log.Warn("cleaning up rejected media failed",
				"kind", item.Kind, "id", item.ID, "url", item.MediaURL, "err", err)
		}
	}
}

func outcomeMessage(kind models.ContentKind, state models.ModerationState) string {
	if state == models.StateApproved {
		return fmt.Sprintf("your %s was approved and is now visible", kind)
	}
	return fmt.Sprintf("your %s was rejected for violating the content policy", kind)
}
