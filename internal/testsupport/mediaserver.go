package testsupport

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"komf/internal/mediaserver"
	"komf/internal/metadata"
)

// MediaServer is an in-memory mediaserver.Client recording every write.
type MediaServer struct {
	mu sync.Mutex

	Libraries map[string]mediaserver.Library
	Series    map[string]mediaserver.Series
	Books     map[string][]mediaserver.Book
	Covers    map[string][]byte

	SeriesUpdates map[string][]mediaserver.SeriesUpdate
	BookUpdates   map[string][]mediaserver.BookUpdate
	Uploaded      []string
	Deleted       []string
	Resets        []string
	// FailUpdate makes UpdateSeries fail with this error.
	FailUpdate error

	nextThumb int
}

var _ mediaserver.Client = (*MediaServer)(nil)

// NewMediaServer returns an empty fake server.
func NewMediaServer() *MediaServer {
	return &MediaServer{
		Libraries:     map[string]mediaserver.Library{},
		Series:        map[string]mediaserver.Series{},
		Books:         map[string][]mediaserver.Book{},
		Covers:        map[string][]byte{},
		SeriesUpdates: map[string][]mediaserver.SeriesUpdate{},
		BookUpdates:   map[string][]mediaserver.BookUpdate{},
	}
}

// AddSeries registers a series (and its library) with the given book names.
func (m *MediaServer) AddSeries(libraryID, seriesID, name string, bookNames ...string) mediaserver.Series {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Libraries[libraryID]; !ok {
		m.Libraries[libraryID] = mediaserver.Library{ID: libraryID, Name: "Library " + libraryID}
	}
	series := mediaserver.Series{ID: seriesID, LibraryID: libraryID, Name: name, Title: name, BookCount: len(bookNames)}
	m.Series[seriesID] = series
	books := make([]mediaserver.Book, 0, len(bookNames))
	for i, bookName := range bookNames {
		books = append(books, mediaserver.Book{
			ID:        seriesID + "-b" + strconv.Itoa(i+1),
			SeriesID:  seriesID,
			LibraryID: libraryID,
			Name:      bookName,
			Number:    float64(i + 1),
		})
	}
	m.Books[seriesID] = books
	return series
}

// SeriesUpdatesFor returns the recorded series patches.
func (m *MediaServer) SeriesUpdatesFor(seriesID string) []mediaserver.SeriesUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mediaserver.SeriesUpdate(nil), m.SeriesUpdates[seriesID]...)
}

// BookUpdatesFor returns the recorded book patches.
func (m *MediaServer) BookUpdatesFor(bookID string) []mediaserver.BookUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mediaserver.BookUpdate(nil), m.BookUpdates[bookID]...)
}

func (m *MediaServer) Type() mediaserver.Type { return mediaserver.Komga }

func (m *MediaServer) ListLibraries(context.Context) ([]mediaserver.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mediaserver.Library, 0, len(m.Libraries))
	for _, lib := range m.Libraries {
		out = append(out, lib)
	}
	return out, nil
}

func (m *MediaServer) GetLibrary(_ context.Context, libraryID string) (mediaserver.Library, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lib, ok := m.Libraries[libraryID]
	if !ok {
		return mediaserver.Library{}, fmt.Errorf("library %s: %w", libraryID, mediaserver.ErrNotFound)
	}
	return lib, nil
}

func (m *MediaServer) ListSeries(_ context.Context, libraryID string, page, size int) (mediaserver.Page[mediaserver.Series], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []mediaserver.Series
	for _, s := range m.Series {
		if s.LibraryID == libraryID {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if size <= 0 {
		size = len(all) + 1
	}
	totalPages := (len(all) + size - 1) / size
	start := min(page*size, len(all))
	end := min(start+size, len(all))
	return mediaserver.Page[mediaserver.Series]{Content: all[start:end], Page: page, TotalPages: totalPages}, nil
}

func (m *MediaServer) GetSeries(_ context.Context, seriesID string) (mediaserver.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.Series[seriesID]
	if !ok {
		return mediaserver.Series{}, fmt.Errorf("series %s: %w", seriesID, mediaserver.ErrNotFound)
	}
	return s, nil
}

func (m *MediaServer) ListBooks(_ context.Context, seriesID string) ([]mediaserver.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mediaserver.Book(nil), m.Books[seriesID]...), nil
}

func (m *MediaServer) GetBookThumbnail(_ context.Context, bookID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Covers[bookID], nil
}

func (m *MediaServer) UpdateSeries(_ context.Context, seriesID string, update mediaserver.SeriesUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailUpdate != nil {
		return m.FailUpdate
	}
	m.SeriesUpdates[seriesID] = append(m.SeriesUpdates[seriesID], update)
	return nil
}

func (m *MediaServer) UpdateBook(_ context.Context, bookID string, update mediaserver.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BookUpdates[bookID] = append(m.BookUpdates[bookID], update)
	return nil
}

func (m *MediaServer) UploadSeriesThumbnail(_ context.Context, seriesID string, _ mediaserver.Image) (string, error) {
	return m.upload("series:" + seriesID), nil
}

func (m *MediaServer) UploadBookThumbnail(_ context.Context, bookID string, _ mediaserver.Image) (string, error) {
	return m.upload("book:" + bookID), nil
}

func (m *MediaServer) upload(target string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextThumb++
	m.Uploaded = append(m.Uploaded, target)
	return "thumb-" + strconv.Itoa(m.nextThumb)
}

func (m *MediaServer) DeleteSeriesThumbnail(_ context.Context, _ string, thumbnailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, thumbnailID)
	return nil
}

func (m *MediaServer) DeleteBookThumbnail(_ context.Context, _ string, thumbnailID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, thumbnailID)
	return nil
}

func (m *MediaServer) ResetSeries(_ context.Context, series mediaserver.Series) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets = append(m.Resets, "series:"+series.ID)
	return nil
}

func (m *MediaServer) ResetBook(_ context.Context, book mediaserver.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Resets = append(m.Resets, "book:"+book.ID)
	return nil
}

// Thumbnails is an in-memory mediaserver.ThumbnailRepository.
type Thumbnails struct {
	mu     sync.Mutex
	series map[string]mediaserver.Thumbnail
	books  map[string]mediaserver.Thumbnail
}

var _ mediaserver.ThumbnailRepository = (*Thumbnails)(nil)

// NewThumbnails returns an empty repository.
func NewThumbnails() *Thumbnails {
	return &Thumbnails{series: map[string]mediaserver.Thumbnail{}, books: map[string]mediaserver.Thumbnail{}}
}

func (r *Thumbnails) FindSeriesThumbnail(_ context.Context, seriesID string) (*mediaserver.Thumbnail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.series[seriesID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *Thumbnails) SaveSeriesThumbnail(_ context.Context, thumb mediaserver.Thumbnail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[thumb.SeriesID] = thumb
	return nil
}

func (r *Thumbnails) DeleteSeriesThumbnail(_ context.Context, seriesID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.series, seriesID)
	return nil
}

func (r *Thumbnails) FindBookThumbnail(_ context.Context, bookID string) (*mediaserver.Thumbnail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.books[bookID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (r *Thumbnails) SaveBookThumbnail(_ context.Context, thumb mediaserver.Thumbnail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[thumb.BookID] = thumb
	return nil
}

func (r *Thumbnails) DeleteBookThumbnail(_ context.Context, bookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.books, bookID)
	return nil
}

// StaticImages is an ImageLoader returning fixed bytes for any image.
type StaticImages struct{}

func (StaticImages) Load(_ context.Context, image *metadata.Image) (mediaserver.Image, error) {
	if image == nil {
		return mediaserver.Image{}, fmt.Errorf("image is nil")
	}
	return mediaserver.Image{Data: []byte("img:" + image.URL), MimeType: "image/jpeg"}, nil
}
