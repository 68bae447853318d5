package mediaserver

import (
	"context"
	"errors"

	"komf/internal/metadata"
)

// ErrNotFound is returned when a library, series or book does not exist.
var ErrNotFound = errors.New("not found")

// Type names a media server implementation.
type Type string

const (
	Komga  Type = "komga"
	Kavita Type = "kavita"
)

// Field names a lockable metadata field.
type Field string

const (
	FieldStatus            Field = "status"
	FieldTitle             Field = "title"
	FieldTitleSort         Field = "titleSort"
	FieldSummary           Field = "summary"
	FieldPublisher         Field = "publisher"
	FieldReadingDirection  Field = "readingDirection"
	FieldAgeRating         Field = "ageRating"
	FieldLanguage          Field = "language"
	FieldGenres            Field = "genres"
	FieldTags              Field = "tags"
	FieldTotalBookCount    Field = "totalBookCount"
	FieldAuthors           Field = "authors"
	FieldReleaseDate       Field = "releaseDate"
	FieldLinks             Field = "links"
	FieldAlternativeTitles Field = "alternativeTitles"
	FieldNumber            Field = "number"
	FieldNumberSort        Field = "numberSort"
	FieldISBN              Field = "isbn"
)

// Locks is the set of fields a user locked on the media server. Locked
// fields are never overwritten.
type Locks map[Field]bool

// Has reports whether f is locked.
func (l Locks) Has(f Field) bool {
	return l[f]
}

// Library is a media server library.
type Library struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Cover describes the currently selected cover of a series or book.
type Cover struct {
	// ID is the server's thumbnail id, empty when the server does not keep
	// multiple thumbnails.
	ID string `json:"id,omitempty"`
	// UserUploaded is set for covers chosen or uploaded by a user.
	UserUploaded bool `json:"userUploaded"`
}

// Series is a media server series with the metadata currently stored.
type Series struct {
	ID                string   `json:"id"`
	LibraryID         string   `json:"libraryId"`
	Name              string   `json:"name"`
	Title             string   `json:"title"`
	BookCount         int      `json:"bookCount"`
	ReleaseYear       int      `json:"releaseYear,omitempty"`
	AlternativeTitles []string `json:"alternativeTitles,omitempty"`
	Locks             Locks    `json:"locks,omitempty"`
	Cover             *Cover   `json:"cover,omitempty"`
}

// Book is a media server book.
type Book struct {
	ID        string `json:"id"`
	SeriesID  string `json:"seriesId"`
	LibraryID string `json:"libraryId"`
	// Name is the file name without extension.
	Name    string  `json:"name"`
	Number  float64 `json:"number"`
	Deleted bool    `json:"deleted"`
	Locks   Locks   `json:"locks,omitempty"`
	Cover   *Cover  `json:"cover,omitempty"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Content    []T `json:"content"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// Last reports whether no page follows this one.
func (p Page[T]) Last() bool {
	return p.Page+1 >= p.TotalPages
}

// SeriesUpdate is a series metadata patch. Nil fields are left unchanged;
// non-nil empty slices clear the field.
type SeriesUpdate struct {
	Status            *metadata.SeriesStatus
	Title             *string
	TitleSort         *string
	Summary           *string
	Publisher         *string
	ReadingDirection  *metadata.ReadingDirection
	AgeRating         *int
	Language          *string
	Genres            []string
	Tags              []string
	TotalBookCount    *int
	Authors           []metadata.Author
	ReleaseDate       *metadata.ReleaseDate
	Links             []metadata.WebLink
	AlternativeTitles []metadata.SeriesTitle
}

// Empty reports whether the patch changes nothing.
func (u SeriesUpdate) Empty() bool {
	return u.Status == nil && u.Title == nil && u.TitleSort == nil && u.Summary == nil &&
		u.Publisher == nil && u.ReadingDirection == nil && u.AgeRating == nil && u.Language == nil &&
		u.Genres == nil && u.Tags == nil && u.TotalBookCount == nil && u.Authors == nil &&
		u.ReleaseDate == nil && u.Links == nil && u.AlternativeTitles == nil
}

// BookUpdate is a book metadata patch with the same conventions as
// SeriesUpdate.
type BookUpdate struct {
	Title       *string
	Summary     *string
	Number      *string
	NumberSort  *float64
	ReleaseDate *metadata.ReleaseDate
	Authors     []metadata.Author
	Tags        []string
	ISBN        *string
	Links       []metadata.WebLink
}

// Empty reports whether the patch changes nothing.
func (u BookUpdate) Empty() bool {
	return u.Title == nil && u.Summary == nil && u.Number == nil && u.NumberSort == nil &&
		u.ReleaseDate == nil && u.Authors == nil && u.Tags == nil && u.ISBN == nil && u.Links == nil
}

// Client is the media server contract.
type Client interface {
	Type() Type
	ListLibraries(ctx context.Context) ([]Library, error)
	GetLibrary(ctx context.Context, libraryID string) (Library, error)
	ListSeries(ctx context.Context, libraryID string, page, size int) (Page[Series], error)
	GetSeries(ctx context.Context, seriesID string) (Series, error)
	ListBooks(ctx context.Context, seriesID string) ([]Book, error)
	GetBookThumbnail(ctx context.Context, bookID string) ([]byte, error)
	UpdateSeries(ctx context.Context, seriesID string, update SeriesUpdate) error
	UpdateBook(ctx context.Context, bookID string, update BookUpdate) error
	// UploadSeriesThumbnail returns the server's id for the uploaded image,
	// empty when the server keeps a single cover.
	UploadSeriesThumbnail(ctx context.Context, seriesID string, image Image) (string, error)
	UploadBookThumbnail(ctx context.Context, bookID string, image Image) (string, error)
	DeleteSeriesThumbnail(ctx context.Context, seriesID, thumbnailID string) error
	DeleteBookThumbnail(ctx context.Context, bookID, thumbnailID string) error
	ResetSeries(ctx context.Context, series Series) error
	ResetBook(ctx context.Context, book Book) error
}

// Image is downloaded image data ready for upload.
type Image struct {
	Data     []byte
	MimeType string
}

// Thumbnail records a thumbnail uploaded by komf, so later updates replace
// it and never a cover chosen by a user.
type Thumbnail struct {
	SeriesID    string
	BookID      string
	ThumbnailID string
}

// ThumbnailRepository persists uploaded thumbnail references.
type ThumbnailRepository interface {
	FindSeriesThumbnail(ctx context.Context, seriesID string) (*Thumbnail, error)
	SaveSeriesThumbnail(ctx context.Context, thumb Thumbnail) error
	DeleteSeriesThumbnail(ctx context.Context, seriesID string) error
	FindBookThumbnail(ctx context.Context, bookID string) (*Thumbnail, error)
	SaveBookThumbnail(ctx context.Context, thumb Thumbnail) error
	DeleteBookThumbnail(ctx context.Context, bookID string) error
}
