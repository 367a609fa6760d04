package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/sakif/cardbox/internal/apperror"
	"github.com/sakif/cardbox/internal/model"
	"github.com/sakif/cardbox/internal/repository"
	"github.com/sakif/cardbox/internal/storage"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements repository.Store with two maps. WithTx snapshots both
// maps and restores them when fn fails, which is enough to test that a
// failed operation leaves nothing behind.
//
// failOn makes the named operation ("cards.DeleteByFolder", ...) return
// errStoreDown, to simulate a broken database halfway through a transaction.

var errStoreDown = errors.New("database is on fire")

type memStore struct {
	folders    map[int64]model.Folder
	cards      map[int64]model.Card
	nextFolder int64
	nextCard   int64
	failOn     string
	txCount    int
}

func newMemStore() *memStore {
	return &memStore{
		folders: make(map[int64]model.Folder),
		cards:   make(map[int64]model.Card),
	}
}

var _ repository.Store = (*memStore)(nil)

func (m *memStore) Folders() repository.FolderRepository { return memFolders{m} }
func (m *memStore) Cards() repository.CardRepository     { return memCards{m} }
func (m *memStore) Ping(context.Context) error            { return nil }

func (m *memStore) WithTx(ctx context.Context, fn func(context.Context, repository.Repositories) error) error {
	m.txCount++
	folders, cards := maps.Clone(m.folders), maps.Clone(m.cards)
	nextFolder, nextCard := m.nextFolder, m.nextCard

	if err := fn(ctx, m); err != nil {
		m.folders, m.cards = folders, cards
		m.nextFolder, m.nextCard = nextFolder, nextCard
		return err
	}
	return nil
}

func (m *memStore) fail(op string) error {
	if m.failOn == op {
		return errStoreDown
	}
	return nil
}

// addFolder inserts a folder directly, bypassing the service.
func (m *memStore) addFolder(name string, parentID *int64, position int) int64 {
	m.nextFolder++
	m.folders[m.nextFolder] = model.Folder{ID: m.nextFolder, Name: name, ParentID: parentID, Position: position}
	return m.nextFolder
}

// addCard inserts a card directly, bypassing the service.
func (m *memStore) addCard(title string, folderID int64, position int, imageKey string) int64 {
	m.nextCard++
	m.cards[m.nextCard] = model.Card{
		ID: m.nextCard, Title: title, Body: title + " body",
		FolderID: folderID, Position: position, ImageKey: imageKey,
	}
	return m.nextCard
}

func (m *memStore) folderIDs() []int64 {
	return slices.Sorted(maps.Keys(m.folders))
}

func (m *memStore) cardIDs() []int64 {
	return slices.Sorted(maps.Keys(m.cards))
}

func sortedFolders(in []model.Folder) []model.Folder {
	slices.SortFunc(in, func(a, b model.Folder) int { return byPosition(a.Position, a.ID, b.Position, b.ID) })
	return in
}

// -------------------------------------------------------------------------

type memFolders struct{ m *memStore }

func (r memFolders) Create(_ context.Context, f *model.Folder) error {
	if err := r.m.fail("folders.Create"); err != nil {
		return err
	}
	r.m.nextFolder++
	f.ID = r.m.nextFolder
	r.m.folders[f.ID] = *f
	return nil
}

func (r memFolders) GetByID(_ context.Context, id int64) (*model.Folder, error) {
	f, ok := r.m.folders[id]
	if !ok {
		return nil, apperror.NotFound("folder", id)
	}
	return &f, nil
}

func (r memFolders) Exists(_ context.Context, id int64) (bool, error) {
	_, ok := r.m.folders[id]
	return ok, nil
}

func (r memFolders) ListChildren(_ context.Context, parentID int64) ([]model.Folder, error) {
	if err := r.m.fail("folders.ListChildren"); err != nil {
		return nil, err
	}
	var out []model.Folder
	for _, f := range r.m.folders {
		if f.ParentID != nil && *f.ParentID == parentID {
			out = append(out, f)
		}
	}
	return sortedFolders(out), nil
}

func (r memFolders) ListAll(_ context.Context) ([]model.Folder, error) {
	if err := r.m.fail("folders.ListAll"); err != nil {
		return nil, err
	}
	// Map order is random, which checks that the tree builder sorts itself.
	return slices.Collect(maps.Values(r.m.folders)), nil
}

func (r memFolders) NextPosition(_ context.Context, parentID *int64) (int, error) {
	next := 0
	for _, f := range r.m.folders {
		if sameID(f.ParentID, parentID) && f.Position+1 > next {
			next = f.Position + 1
		}
	}
	return next, nil
}

func (r memFolders) Update(_ context.Context, f *model.Folder) error {
	if _, ok := r.m.folders[f.ID]; !ok {
		return apperror.NotFound("folder", f.ID)
	}
	r.m.folders[f.ID] = *f
	return nil
}

func (r memFolders) SetPosition(_ context.Context, id int64, position int) (bool, error) {
	if err := r.m.fail("folders.SetPosition"); err != nil {
		return false, err
	}
	f, ok := r.m.folders[id]
	if !ok {
		return false, nil
	}
	f.Position = position
	r.m.folders[id] = f
	return true, nil
}

func (r memFolders) Delete(_ context.Context, id int64) error {
	if err := r.m.fail("folders.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.folders[id]; !ok {
		return apperror.NotFound("folder", id)
	}
	for _, f := range r.m.folders {
		if f.ParentID != nil && *f.ParentID == id {
			return errors.New("FOREIGN KEY constraint failed")
		}
	}
	delete(r.m.folders, id)
	return nil
}

// -------------------------------------------------------------------------

type memCards struct{ m *memStore }

func (r memCards) Create(_ context.Context, c *model.Card) error {
	if err := r.m.fail("cards.Create"); err != nil {
		return err
	}
	r.m.nextCard++
	c.ID = r.m.nextCard
	r.m.cards[c.ID] = *c
	return nil
}

func (r memCards) GetByID(_ context.Context, id int64) (*model.Card, error) {
	c, ok := r.m.cards[id]
	if !ok {
		return nil, apperror.NotFound("card", id)
	}
	return &c, nil
}

func (r memCards) List(_ context.Context, filter repository.CardFilter) ([]model.Card, error) {
	if err := r.m.fail("cards.List"); err != nil {
		return nil, err
	}
	out := make([]model.Card, 0)
	for _, id := range r.m.cardIDs() {
		c := r.m.cards[id]
		if filter.FolderID == nil || c.FolderID == *filter.FolderID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r memCards) NextPosition(_ context.Context, folderID int64) (int, error) {
	next := 0
	for _, c := range r.m.cards {
		if c.FolderID == folderID && c.Position+1 > next {
			next = c.Position + 1
		}
	}
	return next, nil
}

func (r memCards) Update(_ context.Context, c *model.Card) error {
	if err := r.m.fail("cards.Update"); err != nil {
		return err
	}
	if _, ok := r.m.cards[c.ID]; !ok {
		return apperror.NotFound("card", c.ID)
	}
	r.m.cards[c.ID] = *c
	return nil
}

func (r memCards) SetPosition(_ context.Context, id int64, position int) (bool, error) {
	c, ok := r.m.cards[id]
	if !ok {
		return false, nil
	}
	c.Position = position
	r.m.cards[id] = c
	return true, nil
}

func (r memCards) Delete(_ context.Context, id int64) error {
	if _, ok := r.m.cards[id]; !ok {
		return apperror.NotFound("card", id)
	}
	delete(r.m.cards, id)
	return nil
}

func (r memCards) DeleteByFolder(_ context.Context, folderID int64) ([]model.Card, error) {
	if err := r.m.fail("cards.DeleteByFolder"); err != nil {
		return nil, err
	}
	removed := make([]model.Card, 0)
	for _, id := range r.m.cardIDs() {
		if c := r.m.cards[id]; c.FolderID == folderID {
			removed = append(removed, c)
			delete(r.m.cards, id)
		}
	}
	return removed, nil
}

// =========================================================================
// IN-MEMORY BLOB STORE
// =========================================================================

type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	deleted   []string
	putErr    error
	deleteErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}, types: map[string]string{}}
}

var _ storage.BlobStore = (*memBlobs)(nil)

func (b *memBlobs) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	if b.putErr != nil {
		return b.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memBlobs) Open(_ context.Context, key string) (io.ReadCloser, storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.Object{}, apperror.NotFound("blob", key)
	}
	return io.NopCloser(bytes.NewReader(data)), storage.Object{Key: key, ContentType: b.types[key], Size: int64(len(data))}, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, key)
	delete(b.objects, key)
	return nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func ptr[T any](v T) *T { return &v }

// pngBytes is a minimal PNG header; http.DetectContentType reports image/png.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func pngImage() *Image {
	return &Image{Filename: "photo.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)}
}
