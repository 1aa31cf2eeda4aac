// -----------------------------------------------------------------------
// Engine (C7) - binds the backend store, start/end policies, matcher, and
// external adapters into the queue's public RPC surface. Each RPC method
// name mirrors the operation it implements. Run starts the background
// loops (reconcile, location refresh, and pull on a local queue or close on
// a global queue), which stop on context cancellation. No loop injects
// work: GetWork runs only when it is called.
// -----------------------------------------------------------------------

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/workqueue/internal/common"
	"github.com/ternarybob/workqueue/internal/interfaces"
	"github.com/ternarybob/workqueue/internal/models"
	"github.com/ternarybob/workqueue/internal/queue/endpolicy"
	"github.com/ternarybob/workqueue/internal/queue/location"
	"github.com/ternarybob/workqueue/internal/queue/matcher"
	"github.com/ternarybob/workqueue/internal/queue/startpolicy"
)

// SpecLoader resolves a request name to its parsed spec document,
// implemented by internal/specstore so the engine never has to know about
// YAML or the filesystem.
type SpecLoader interface {
	Load(ctx context.Context, requestName string) (*models.Spec, error)
}

// Config carries the operational parameters of a running engine, sourced
// from common.Config.Queue.
type Config struct {
	PollInterval                time.Duration
	CancelGraceTime             time.Duration
	StuckElementAlertTime       time.Duration
	WorkPerCycle                int
	LocationRefreshInterval     time.Duration
	FullLocationRefreshInterval time.Duration
	OpenRunningTimeout          time.Duration
	QueueName                   string
	IsGlobalQueue               bool
	ParentQueueUrl              string
	SelfUrl                     string
	WMBSUrl                     string
}

// Engine implements the queue's RPC surface over a BackendStore.
type Engine struct {
	Store      interfaces.BackendStore
	Specs      SpecLoader
	Metadata   interfaces.MetadataAdapter
	Location   interfaces.LocationAdapter
	SiteCat    interfaces.SiteCatalog
	Substrate  interfaces.SubstrateAdapter
	ReqManager interfaces.RequestManagerAdapter
	Logger     arbor.ILogger
	Cfg        Config

	locationTracker *location.Tracker
	negotiating     map[string]bool // requestName -> a pullWork transfer is in flight
}

// NewEngine wires the engine's dependencies together.
func NewEngine(store interfaces.BackendStore, specs SpecLoader, metadata interfaces.MetadataAdapter,
	loc interfaces.LocationAdapter, siteCat interfaces.SiteCatalog, substrate interfaces.SubstrateAdapter,
	reqMgr interfaces.RequestManagerAdapter, logger arbor.ILogger, cfg Config) *Engine {
	return &Engine{
		Store: store, Specs: specs, Metadata: metadata, Location: loc, SiteCat: siteCat,
		Substrate: substrate, ReqManager: reqMgr, Logger: logger, Cfg: cfg,
		locationTracker: location.NewTracker(),
		negotiating:     make(map[string]bool),
	}
}

// Run starts the engine's background loops and blocks until ctx is
// canceled. app.New invokes it via common.SafeGoWithContext, and each
// loop runs under its own SafeGoWithContext so a panic in one loop doesn't
// bring down the others.
func (e *Engine) Run(ctx context.Context) {
	common.SafeGoWithContext(ctx, e.Logger, "queue.reconcile", func() { e.loop(ctx, e.Cfg.PollInterval, e.reconcileTick) })
	if e.Cfg.IsGlobalQueue {
		common.SafeGoWithContext(ctx, e.Logger, "queue.close", func() { e.loop(ctx, e.Cfg.PollInterval, e.closeTick) })
	} else {
		common.SafeGoWithContext(ctx, e.Logger, "queue.pull", func() { e.loop(ctx, e.Cfg.PollInterval, e.pullTick) })
	}
	common.SafeGoWithContext(ctx, e.Logger, "queue.location", func() { e.loop(ctx, e.Cfg.LocationRefreshInterval, e.locationTick) })
	<-ctx.Done()
}

func (e *Engine) loop(ctx context.Context, interval time.Duration, tick func(context.Context)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick(ctx)
		}
	}
}

func (e *Engine) reconcileTick(ctx context.Context) {
	if err := e.PerformSyncAndCancelAction(ctx, false); err != nil {
		e.Logger.Warn().Err(err).Msg("reconcile cycle failed")
	}
}

func (e *Engine) pullTick(ctx context.Context) {
	if _, err := e.PullWork(ctx, nil); err != nil {
		e.Logger.Warn().Err(err).Msg("pull cycle failed")
	}
}

func (e *Engine) closeTick(ctx context.Context) {
	if err := e.CloseWork(ctx, nil); err != nil {
		e.Logger.Warn().Err(err).Msg("close cycle failed")
	}
}

func (e *Engine) locationTick(ctx context.Context) {
	m := &location.Mapper{
		Store: e.Store, Location: e.Location, SiteCatalog: e.SiteCat, Logger: e.Logger,
		RefreshInterval: e.Cfg.LocationRefreshInterval, FullInterval: e.Cfg.FullLocationRefreshInterval,
	}
	if err := m.Refresh(ctx, e.locationTracker, false); err != nil {
		e.Logger.Warn().Err(err).Msg("location refresh failed")
	}
}

// QueueWork ingests a spec: inserts a new inbox element and runs the start
// policy against every top-level task, inserting the resulting children.
// An existing inbox element for the same request is not looked up or
// reused; every call inserts another one.
func (e *Engine) QueueWork(ctx context.Context, requestName, team string) error {
	spec, err := e.Specs.Load(ctx, requestName)
	if err != nil {
		return newWMSpecError(requestName, "failed to load spec", err)
	}
	if spec.Name() != requestName {
		return newWMSpecError(requestName, fmt.Sprintf("spec name %q does not match request %q", spec.Name(), requestName), nil)
	}
	if err := spec.Validate(); err != nil {
		return newWMSpecError(requestName, "spec validation failed", err)
	}
	spec.CoerceDownstreamSplitting()

	inbox := models.NewInboxElement(requestName, spec.GetTopLevelTask().Name, spec.StartPolicy, spec.Priority)
	inbox.Id = common.NewInboxID()
	inbox.Status = models.StatusNegotiating
	inbox.SuccessThreshold = spec.EffectiveSuccessThreshold()
	if err := e.Store.InsertInboxElement(ctx, inbox); err != nil {
		return newError("QueueWork", requestName, err)
	}

	for _, task := range spec.Tasks {
		if err := e.splitTask(ctx, spec, task, inbox); err != nil {
			return err
		}
	}

	inbox.Status = models.StatusAcquired
	inbox.TeamName = team
	if err := e.Store.SaveInboxElement(ctx, inbox); err != nil {
		return newError("QueueWork", requestName, err)
	}

	if e.Cfg.IsGlobalQueue && e.ReqManager != nil {
		stats := []interfaces.RequestStats{{RequestName: requestName, Status: "Acquired", UpdateTime: time.Now().UTC()}}
		if err := e.ReqManager.UpdateRequestStats(ctx, stats); err != nil {
			e.Logger.Warn().Err(err).Str("request_name", requestName).Msg("failed to push request stats")
		}
	}

	e.recordActivity(ctx, requestName, "", "split", fmt.Sprintf("jobs=%d events=%d lumis=%d files=%d", inbox.Jobs, inbox.NumberOfEvents, inbox.NumberOfLumis, inbox.NumberOfFiles))
	return nil
}

// splitTask runs task's start policy against inbox's processed/rejected
// ledger, inserts any newly produced elements, and folds both the produced
// totals and the ledger update back onto inbox. Used by the initial split in
// QueueWork and by CloseWork's continuous-split re-entry.
func (e *Engine) splitTask(ctx context.Context, spec *models.Spec, task *models.Task, inbox *models.InboxElement) error {
	policy := startpolicy.For(spec.StartPolicy)
	if policy == nil {
		return newTerminalSplitError(spec.RequestName, fmt.Sprintf("unknown start policy %q", spec.StartPolicy), nil)
	}
	elements, rejected, err := policy.Split(ctx, startpolicy.Input{
		Spec: spec, Task: task, Metadata: e.Metadata, Location: e.Location,
		ProcessedInputs: inbox.ProcessedInputSet(), RejectedInputs: inbox.RejectedInputSet(),
		FirstEventBase: int64(inbox.NumberOfEvents), FirstLumiBase: int64(inbox.NumberOfLumis),
	})
	if err != nil {
		return newTerminalSplitError(spec.RequestName, fmt.Sprintf("split failed for task %s", task.Name), err)
	}
	for _, el := range elements {
		if err := e.Store.InsertElement(ctx, el); err != nil {
			return newError("QueueWork", fmt.Sprintf("insert element for task %s", task.Name), err)
		}
		inbox.Jobs += el.Jobs
		inbox.NumberOfEvents += el.NumberOfEvents
		inbox.NumberOfLumis += el.NumberOfLumis
		inbox.NumberOfFiles += el.NumberOfFiles
		inbox.AddProcessedInputs(el.Inputs...)
	}
	inbox.AddRejectedInputs(rejected...)
	return nil
}

// PullWork replicates elements down from the configured parent queue into
// this (local) queue's store. resources maps site -> free slots; nil means
// "consult the site catalog".
func (e *Engine) PullWork(ctx context.Context, resources map[string]int) ([]*models.Element, error) {
	if e.Cfg.ParentQueueUrl == "" {
		return nil, nil // local-queue-only operation; nothing to pull against
	}
	if resources == nil {
		slots, err := e.SiteCat.FreeSlots(ctx)
		if err != nil {
			return nil, newTransientAdapterError("sitecatalog", "failed to fetch free slots", err)
		}
		resources = slots
	}

	offer := matcher.Offer{JobSlots: resources, NumElems: e.Cfg.WorkPerCycle}
	result, err := matcher.Match(ctx, e.Store, offer)
	if err != nil {
		return nil, newError("PullWork", "", err)
	}

	for _, el := range result.Matched {
		if e.negotiating[el.RequestName] {
			continue
		}
		el.Status = models.StatusNegotiating
		el.ChildQueueUrl = e.Cfg.SelfUrl
		el.ParentQueueUrl = e.Cfg.ParentQueueUrl
		el.WMBSUrl = e.Cfg.WMBSUrl
		if err := e.Store.SaveElement(ctx, el); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to mark element negotiating on parent")
			continue
		}

		local := el.Clone()
		local.Status = models.StatusAvailable
		if err := e.Store.InsertElement(ctx, local); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", local.Id).Msg("failed to insert replicated element locally")
		}
	}
	return result.Matched, nil
}

// GetWork runs the matcher against the offered resources and, for each
// match, materializes files and creates a substrate subscription, leaving
// the element Running.
func (e *Engine) GetWork(ctx context.Context, offer matcher.Offer) ([]*models.Element, error) {
	result, err := matcher.Match(ctx, e.Store, offer)
	if err != nil {
		return nil, newError("GetWork", "", err)
	}
	if len(result.Matched) == 0 {
		return nil, newNoMatchingElementsError("no elements matched the offered resources")
	}

	var injected []*models.Element
	for _, el := range result.Matched {
		spec, err := e.Specs.Load(ctx, el.RequestName)
		if err != nil {
			e.Logger.Warn().Err(err).Str("request_name", el.RequestName).Msg("skip element: failed to load spec")
			continue
		}

		var block interfaces.FileBlock
		if el.StartPolicy == models.StartPolicyDataset && len(el.Inputs) > 0 {
			block, err = e.Metadata.GetFileBlockWithParents(ctx, el.Inputs[0])
		} else if len(el.Inputs) > 0 {
			if task := spec.GetTask(el.TaskName); task != nil && task.ParentProcessingFlag() {
				block, err = e.Metadata.GetFileBlockWithParents(ctx, el.Inputs[0])
			} else {
				block, err = e.Metadata.GetFileBlock(ctx, el.Inputs[0])
			}
		}
		if err != nil {
			e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("skip element: metadata adapter failed")
			continue
		}

		if !CanTransition(el.Status, models.StatusRunning) {
			e.Logger.Warn().Str("element_id", el.Id).Str("from", string(el.Status)).Msg("skip element: illegal Running transition")
			continue
		}

		subID, filesAdded, err := e.createSubscription(ctx, el)
		if err != nil {
			e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("skip element: substrate adapter failed")
			continue
		}

		el.Status = models.StatusRunning
		el.SubscriptionId = subID
		el.NumOfFilesAdded = filesAdded
		el.NumberOfFiles = block.NumberFiles
		if err := e.Store.SaveElement(ctx, el); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to persist injected element")
			continue
		}
		injected = append(injected, el)
	}
	return injected, nil
}

// createSubscription registers el's inputs with the substrate, returning the
// subscription id it assigned and how many files it actually staged.
func (e *Engine) createSubscription(ctx context.Context, el *models.Element) (int64, int, error) {
	return e.Substrate.CreateSubscription(ctx, el.RequestName, el.TaskName, el.Inputs)
}

// PerformSyncAndCancelAction runs the end-policy reconciliation loop over
// every workflow with local elements, escalating cancellations and
// finalizing workflows that have reached an end state.
func (e *Engine) PerformSyncAndCancelAction(ctx context.Context, skipWMBS bool) error {
	inboxes, err := e.Store.AllInboxElements(ctx)
	if err != nil {
		return newError("PerformSyncAndCancelAction", "", err)
	}

	for _, inbox := range inboxes {
		if err := e.Store.FixConflicts(ctx, inbox.RequestName); err != nil {
			e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("fixConflicts failed")
		}

		elements, err := e.Store.ElementsByRequest(ctx, inbox.RequestName)
		if err != nil {
			e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("failed to load elements for reconcile")
			continue
		}
		if !skipWMBS {
			e.enrichFromSubstrate(ctx, elements)
		}

		result := endpolicy.Reconcile(elements, []*models.InboxElement{inbox}, endpolicy.Config{SuccessThreshold: inbox.EffectiveSuccessThreshold()})

		if result.Status == models.StatusCancelRequested {
			if err := e.cancelElements(ctx, inbox.RequestName, elements, inbox); err != nil {
				e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("cancellation sweep failed")
			}
			continue
		}

		for _, el := range result.Modified {
			if err := e.Store.SaveElement(ctx, el); err != nil {
				e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to persist reconciled element")
			}
		}

		if inbox.Status != result.Status || inbox.PercentComplete != result.PercentComplete {
			inbox.Status = result.Status
			inbox.PercentComplete = result.PercentComplete
			inbox.PercentSuccess = result.PercentSuccess
			if err := e.Store.SaveInboxElement(ctx, inbox); err != nil {
				e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("failed to persist reconciled inbox")
			}
		}

		if e.Cfg.StuckElementAlertTime > 0 && time.Since(inbox.UpdateTime) > e.Cfg.StuckElementAlertTime {
			e.Logger.Warn().Str("request_name", inbox.RequestName).Dur("age", time.Since(inbox.UpdateTime)).
				Msg("inbox element has not progressed within stuck-element alert threshold")
		}
	}
	return nil
}

func (e *Engine) enrichFromSubstrate(ctx context.Context, elements []*models.Element) {
	for _, el := range elements {
		if el.SubscriptionId == 0 || el.Status.IsTerminal() {
			continue
		}
		summaries, err := e.Substrate.WMBSSubscriptionStatus(ctx, el.SubscriptionId)
		if err != nil {
			continue
		}
		for _, s := range summaries {
			if s.TaskName != el.TaskName {
				continue
			}
			total := s.Running + s.Succeeded + s.Failed
			if total == 0 {
				continue
			}
			el.PercentComplete = float64(s.Succeeded+s.Failed) / float64(total)
			el.PercentSuccess = float64(s.Succeeded) / float64(total)
			if s.Running == 0 && s.Succeeded+s.Failed == total {
				if s.Failed > 0 && s.Succeeded == 0 {
					el.Status = models.StatusFailed
				} else {
					el.Status = models.StatusDone
				}
			}
		}
	}
}

// CloseWork implements the continuous split/close loop: for every inbox
// still OpenForNewData, it asks the start policy whether unprocessed input
// has shown up and, if so, re-splits the task and folds the new elements
// into the inbox's ledger. An inbox with no new data for OpenRunningTimeout
// is closed (OpenForNewData cleared) so it becomes eligible to finalize.
func (e *Engine) CloseWork(ctx context.Context, workflows []string) error {
	inboxes, err := e.Store.AllInboxElements(ctx)
	if err != nil {
		return newError("CloseWork", "", err)
	}
	wanted := toSet(workflows)

	for _, inbox := range inboxes {
		if !inbox.OpenForNewData {
			continue
		}
		if len(wanted) > 0 && !wanted[inbox.RequestName] {
			continue
		}

		policy := startpolicy.For(inbox.StartPolicy)
		if policy == nil {
			inbox.OpenForNewData = false
			e.saveInboxQuiet(ctx, inbox)
			continue
		}

		spec, err := e.Specs.Load(ctx, inbox.RequestName)
		if err != nil {
			continue
		}
		task := spec.GetTask(inbox.TaskName)
		if task == nil {
			continue
		}

		hasNew, err := policy.NewDataAvailable(ctx, startpolicy.Input{
			Spec: spec, Task: task, Metadata: e.Metadata,
			ProcessedInputs: inbox.ProcessedInputSet(), RejectedInputs: inbox.RejectedInputSet(),
		})
		if err != nil {
			e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("newDataAvailable check failed")
			continue
		}

		if hasNew {
			if err := e.splitTask(ctx, spec, task, inbox); err != nil {
				e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("continuous split failed")
				continue
			}
			inbox.TimestampFoundNewData = time.Now().UTC()
			e.saveInboxQuiet(ctx, inbox)
			continue
		}

		if e.Cfg.OpenRunningTimeout <= 0 || time.Since(inbox.TimestampFoundNewData) > e.Cfg.OpenRunningTimeout {
			inbox.OpenForNewData = false
			e.saveInboxQuiet(ctx, inbox)
		}
	}
	return nil
}

func (e *Engine) saveInboxQuiet(ctx context.Context, inbox *models.InboxElement) {
	if err := e.Store.SaveInboxElement(ctx, inbox); err != nil {
		e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("failed to persist inbox element")
	}
}

// CancelWork initiates cancellation of one workflow: local elements with
// no child go straight to Canceled, elements with a child are marked
// CancelRequested and must be acknowledged on the next reconcile.
func (e *Engine) CancelWork(ctx context.Context, requestName string) error {
	elements, err := e.Store.ElementsByRequest(ctx, requestName)
	if err != nil {
		return newError("CancelWork", requestName, err)
	}
	inboxes, err := e.Store.InboxElementsByRequest(ctx, requestName)
	if err != nil {
		return newError("CancelWork", requestName, err)
	}

	if err := e.Substrate.KillWorkflow(ctx, requestName); err != nil {
		e.Logger.Warn().Err(err).Str("request_name", requestName).Msg("kill workflow failed, will retry next cycle")
	}

	for _, inbox := range inboxes {
		if err := e.cancelElements(ctx, requestName, elements, inbox); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) cancelElements(ctx context.Context, requestName string, elements []*models.Element, inbox *models.InboxElement) error {
	now := time.Now().UTC()
	for _, el := range elements {
		if el.Status.IsTerminal() {
			continue
		}
		ApplyCancel(el)
		if e.Cfg.CancelGraceTime > 0 && now.Sub(el.UpdateTime) > e.Cfg.CancelGraceTime {
			el.Status = models.StatusCanceled
			el.Touch()
		}
		if err := e.Store.SaveElement(ctx, el); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to persist cancellation")
		}
	}

	inbox.Status = models.StatusCancelRequested
	if !e.Cfg.IsGlobalQueue {
		inbox.Status = models.StatusCanceled
	}
	return e.Store.SaveInboxElement(ctx, inbox)
}

// DeleteWorkflows removes the child elements of every request whose inbox
// element has reached an end state. The inbox elements themselves are not
// deleted and stay in the store.
func (e *Engine) DeleteWorkflows(ctx context.Context, requests []string) error {
	for _, requestName := range requests {
		inboxes, err := e.Store.InboxElementsByRequest(ctx, requestName)
		if err != nil {
			return newError("DeleteWorkflows", requestName, err)
		}
		eligible := true
		for _, inbox := range inboxes {
			if !inbox.Status.IsTerminal() {
				eligible = false
				break
			}
		}
		if !eligible {
			continue
		}

		elements, err := e.Store.ElementsByRequest(ctx, requestName)
		if err != nil {
			return newError("DeleteWorkflows", requestName, err)
		}
		for _, el := range elements {
			if err := e.Store.DeleteElement(ctx, el.Id); err != nil {
				e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to delete element")
			}
		}
	}
	return nil
}

// SetPriority updates Priority on every element of the given workflows.
// No state-machine transition is implied.
func (e *Engine) SetPriority(ctx context.Context, priority int, workflows []string) error {
	for _, requestName := range workflows {
		elements, err := e.Store.ElementsByRequest(ctx, requestName)
		if err != nil {
			return newError("SetPriority", requestName, err)
		}
		for _, el := range elements {
			if el.Priority == priority {
				continue
			}
			el.Priority = priority
			if err := e.Store.SaveElement(ctx, el); err != nil {
				e.Logger.Warn().Err(err).Str("element_id", el.Id).Msg("failed to persist priority update")
			}
		}
	}
	return nil
}

// ResetWork reverts the named elements to Available, clearing the
// acquisition state an abandoned agent left behind.
func (e *Engine) ResetWork(ctx context.Context, ids []string) error {
	for _, id := range ids {
		el, err := e.Store.GetElement(ctx, id)
		if err != nil {
			return newError("ResetWork", id, err)
		}
		if el == nil {
			continue
		}
		Reset(el)
		if err := e.Store.SaveElement(ctx, el); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", id).Msg("failed to persist reset")
		}
	}
	return nil
}

// Status returns every element tracked for requestName.
func (e *Engine) Status(ctx context.Context, requestName string) ([]*models.Element, error) {
	return e.Store.ElementsByRequest(ctx, requestName)
}

// StatusInbox returns the inbox element(s) tracked for requestName.
func (e *Engine) StatusInbox(ctx context.Context, requestName string) ([]*models.InboxElement, error) {
	return e.Store.InboxElementsByRequest(ctx, requestName)
}

// SetStatus forces every element of the named id list to status, validating
// each transition against the state machine rather than writing it blind.
// Used by an operator correcting an element the normal lifecycle got stuck
// on (e.g. forcing a Negotiating element abandoned mid-handshake to Failed).
func (e *Engine) SetStatus(ctx context.Context, ids []string, status models.Status) error {
	if !status.IsValid() {
		return newError("SetStatus", string(status), fmt.Errorf("invalid status"))
	}
	for _, id := range ids {
		el, err := e.Store.GetElement(ctx, id)
		if err != nil {
			return newError("SetStatus", id, err)
		}
		if el == nil {
			continue
		}
		if el.Status == status {
			continue
		}
		if !CanTransition(el.Status, status) {
			e.Logger.Warn().Str("element_id", id).Str("from", string(el.Status)).Str("to", string(status)).
				Msg("rejected illegal status transition")
			continue
		}
		el.Status = status
		if err := e.Store.SaveElement(ctx, el); err != nil {
			e.Logger.Warn().Err(err).Str("element_id", id).Msg("failed to persist forced status")
		}
	}
	return nil
}

// DoneWork marks the named elements Done, the explicit counterpart to the
// substrate-driven completion enrichFromSubstrate applies automatically;
// used when an agent reports completion directly rather than through the
// polled substrate status.
func (e *Engine) DoneWork(ctx context.Context, ids []string) error {
	return e.SetStatus(ctx, ids, models.StatusDone)
}

// PerformQueueCleanupActions runs the periodic housekeeping sweep: for every
// terminal workflow, ask the request manager whether it still knows the
// request and purge only the ones it does not return. A request it still
// returns is kept whatever its status there, and a failed GetRequestByNames
// lookup skips the whole cycle, so a transient outage never destroys
// history the system of record still wants.
func (e *Engine) PerformQueueCleanupActions(ctx context.Context) error {
	inboxes, err := e.Store.AllInboxElements(ctx)
	if err != nil {
		return newError("PerformQueueCleanupActions", "", err)
	}

	var terminal []string
	for _, inbox := range inboxes {
		if inbox.Status.IsTerminal() {
			terminal = append(terminal, inbox.RequestName)
		}
	}
	if len(terminal) == 0 {
		return nil
	}

	eligible := terminal
	if e.ReqManager != nil {
		known, err := e.ReqManager.GetRequestByNames(ctx, terminal)
		if err != nil {
			e.Logger.Warn().Err(err).Msg("request manager lookup failed, skipping cleanup this cycle")
			return nil
		}
		knownSet := toSet(known)
		eligible = eligible[:0]
		for _, name := range terminal {
			if !knownSet[name] {
				eligible = append(eligible, name)
			}
		}
	}

	return e.DeleteWorkflows(ctx, eligible)
}

// MonitorWorkQueue reports the summary counters an operator or the request
// manager polls for: per-status element counts across the whole store.
func (e *Engine) MonitorWorkQueue(ctx context.Context) (map[models.Status]int, error) {
	inboxes, err := e.Store.AllInboxElements(ctx)
	if err != nil {
		return nil, newError("MonitorWorkQueue", "", err)
	}

	counts := make(map[models.Status]int)
	for _, inbox := range inboxes {
		elements, err := e.Store.ElementsByRequest(ctx, inbox.RequestName)
		if err != nil {
			e.Logger.Warn().Err(err).Str("request_name", inbox.RequestName).Msg("monitor: failed to load elements")
			continue
		}
		for _, el := range elements {
			counts[el.Status]++
		}
	}
	return counts, nil
}

func (e *Engine) recordActivity(ctx context.Context, requestName, elementID, event, detail string) {
	entry := models.NewActivityEntry(common.NewElementID(), requestName, event, detail)
	entry.ElementId = elementID
	if err := e.Store.RecordActivity(ctx, entry); err != nil {
		e.Logger.Debug().Err(err).Str("request_name", requestName).Msg("failed to record activity entry")
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}
