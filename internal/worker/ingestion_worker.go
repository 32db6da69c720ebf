package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"runtime"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/model"
	"knowledgehub/internal/pkg/parser"
	"knowledgehub/internal/pkg/splitter"
	"knowledgehub/internal/pkg/textextract"
	"knowledgehub/internal/platform/objectstore"
	"knowledgehub/internal/platform/rabbitmq"
	"knowledgehub/internal/platform/search"
	"knowledgehub/internal/repository"
)

// parentBufferMinBytes is the minimum size the worker lets its parent
// accumulation buffer grow to before handing it to the splitter — the
// two-level chunking shape spec.md calls for: a small push-style
// callback on the extractor feeds a parent buffer the worker itself
// owns, and the worker only runs the child splitter once that buffer
// has accumulated a meaningful amount of text, rather than splitting
// every small fragment the extractor happens to hand over.
const parentBufferMinBytes = 1 << 20

// IngestionWorker consumes merged-upload tasks and runs them through
// parse, split, embed, and index — the sequence manshu's
// FileProcessingConsumer runs synchronously inside one Kafka listener
// callback (parseService.parseAndSave then
// vectorizationService.vectorize). Here a configurable pool of
// goroutines, each holding its own AMQP channel/consumer against the
// same queue, does the same work, generalized from the teacher's
// MessagePersistWorker shape.
type IngestionWorker struct {
	conn      *amqp.Connection
	queueName string

	store       objectstore.Store
	searchStore search.Store
	embedder    *ai.EmbeddingClient
	fileRepo    *repository.FileRepository
	passageRepo *repository.PassageRepository

	splitChunkRunes      int
	maxResidentMemoryMiB int
	embeddingModel       string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewIngestionWorker(
	conn *amqp.Connection,
	queueName string,
	store objectstore.Store,
	searchStore search.Store,
	embedder *ai.EmbeddingClient,
	fileRepo *repository.FileRepository,
	passageRepo *repository.PassageRepository,
	splitChunkRunes int,
	maxResidentMemoryMiB int,
	embeddingModel string,
) *IngestionWorker {
	return &IngestionWorker{
		conn:                 conn,
		queueName:            queueName,
		store:                store,
		searchStore:          searchStore,
		embedder:             embedder,
		fileRepo:             fileRepo,
		passageRepo:          passageRepo,
		splitChunkRunes:      splitChunkRunes,
		maxResidentMemoryMiB: maxResidentMemoryMiB,
		embeddingModel:       embeddingModel,
	}
}

// Start launches workerCount consumer goroutines against the
// ingestion queue. Each holds an independent channel so a slow or
// stuck task in one goroutine doesn't stall the others.
func (w *IngestionWorker) Start(ctx context.Context, workerCount int) error {
	if w.cancel != nil {
		return nil
	}
	if workerCount <= 0 {
		workerCount = 1
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < workerCount; i++ {
		ch, err := w.conn.Channel()
		if err != nil {
			cancel()
			return fmt.Errorf("open ingestion channel failed: %w", err)
		}
		if _, err := ch.QueueDeclare(w.queueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			cancel()
			return fmt.Errorf("declare ingestion queue failed: %w", err)
		}
		deliveries, err := ch.Consume(w.queueName, "", false, false, false, false, nil)
		if err != nil {
			_ = ch.Close()
			cancel()
			return fmt.Errorf("consume ingestion queue failed: %w", err)
		}

		w.wg.Add(1)
		go w.run(workerCtx, ch, deliveries)
	}
	return nil
}

func (w *IngestionWorker) run(ctx context.Context, ch *amqp.Channel, deliveries <-chan amqp.Delivery) {
	defer w.wg.Done()
	defer ch.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			w.handleDelivery(ctx, d)
		}
	}
}

func (w *IngestionWorker) handleDelivery(ctx context.Context, d amqp.Delivery) {
	if w.residentMemoryOverCap() {
		log.Printf("ingestion worker: resident memory over cap, requeueing task")
		_ = d.Nack(false, true)
		return
	}

	var task rabbitmq.IngestionTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.Printf("ingestion worker: decode task failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.processTask(ctx, task); err != nil {
		log.Printf("ingestion worker: process task %s failed: %v", task.Fingerprint, err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// residentMemoryOverCap approximates manshu's checkMemoryThreshold
// (80% of JVM heap) against Go's runtime heap stats instead.
func (w *IngestionWorker) residentMemoryOverCap() bool {
	if w.maxResidentMemoryMiB <= 0 {
		return false
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Sys/(1024*1024) >= uint64(w.maxResidentMemoryMiB)*80/100
}

// processTask runs the document through two levels of chunking: the
// extractor pushes decoded text fragments through a parser.Adapter,
// which the worker uses to grow its own parent buffer; once that
// buffer reaches parentBufferMinBytes (or the document ends) it is
// flushed through splitter.Split — the child splitter — and reset.
// This re-expresses manshu's StreamingContentHandler/ParseService
// pairing (a SAX callback feeding a StringBuilder the service then
// splits) as the worker owning the buffer directly instead of a
// parser subclass owning it.
func (w *IngestionWorker) processTask(ctx context.Context, task rabbitmq.IngestionTask) error {
	file, err := w.fileRepo.GetByFingerprint(task.Fingerprint)
	if err != nil {
		return fmt.Errorf("load file record failed: %w", err)
	}
	if file == nil {
		return fmt.Errorf("file record %q not found", task.Fingerprint)
	}

	object, err := w.store.Get(ctx, task.ObjectKey)
	if err != nil {
		return fmt.Errorf("download merged object failed: %w", err)
	}
	defer object.Close()

	var parent []byte
	var allChunks []string

	flushParent := func() {
		if len(parent) == 0 {
			return
		}
		allChunks = append(allChunks, splitter.Split(string(parent), w.splitChunkRunes)...)
		parent = parent[:0]
	}

	adapter := parser.Adapter{
		OnChars: func(fragment string) error {
			parent = append(parent, fragment...)
			if len(parent) >= parentBufferMinBytes {
				flushParent()
			}
			return nil
		},
		OnEnd: func() error {
			flushParent()
			return nil
		},
	}

	if err := textextract.ExtractStream(file.FileName, object, adapter); err != nil {
		return fmt.Errorf("extract text failed: %w", err)
	}

	if len(allChunks) == 0 {
		return nil
	}

	passages := make([]model.Passage, len(allChunks))
	for i, chunk := range allChunks {
		passages[i] = model.Passage{
			Fingerprint: task.Fingerprint,
			ChunkID:     i + 1,
			Content:     chunk,
			UserID:      task.UserID,
			ScopeTag:    task.ScopeTag,
			IsPublic:    task.IsPublic,
		}
	}
	if err := w.passageRepo.CreateBatch(passages); err != nil {
		return fmt.Errorf("save passages failed: %w", err)
	}

	vectors, err := w.embedder.EmbedAll(ctx, allChunks)
	if err != nil {
		return fmt.Errorf("embed passages failed: %w", err)
	}
	if len(vectors) != len(allChunks) {
		return fmt.Errorf("embedding count %d does not match chunk count %d", len(vectors), len(allChunks))
	}

	documents := make([]search.Document, len(allChunks))
	for i, chunk := range allChunks {
		chunkID := i + 1
		documents[i] = search.Document{
			ID:       documentID(task.Fingerprint, chunkID),
			FileMD5:  task.Fingerprint,
			ChunkID:  chunkID,
			Content:  chunk,
			Vector:   vectors[i],
			Model:    w.embeddingModel,
			UserID:   fmt.Sprintf("%d", task.UserID),
			OrgTag:   task.ScopeTag,
			IsPublic: task.IsPublic,
		}
	}
	if err := w.searchStore.BulkIndex(ctx, documents); err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}

	if err := w.passageRepo.MarkIndexed(task.Fingerprint); err != nil {
		return fmt.Errorf("mark passages indexed failed: %w", err)
	}
	return nil
}

// documentID deterministically derives a search-document id from the
// file fingerprint and chunk index, so redelivering an ingestion task
// upserts in place instead of creating duplicates — spec.md §9 Open
// Question 3, decided in DESIGN.md.
func documentID(fingerprint string, chunkID int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", fingerprint, chunkID)))
	return hex.EncodeToString(sum[:])
}

func (w *IngestionWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
