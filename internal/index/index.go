package index

// Catalog defines the read and write operations on the asset catalog.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type Catalog interface {
	UpsertCategory(name string) (bool, error)
	DeleteCategory(name string) error
	Categories() ([]string, error)
	UpsertAsset(a AssetRow) error
	DeleteAsset(category, name string) error
	GetAsset(category, name string) (*AssetRow, error)
	CategoryChecksums(category string) (map[string]string, error)
	ListCategoryAssets(category string) ([]AssetRow, error)
	FindByChecksum(sum string) ([]AssetRow, error)
	Duplicates() ([]DuplicateGroup, error)
	Stats() ([]CategoryStats, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
