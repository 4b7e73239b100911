package repository

import (
	"errors"
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// NewRepositories creates all repository implementations on one DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:          NewUserRepository(db),
		LinkedAccount: NewLinkedAccountRepository(db),
		ContentItem:   NewContentItemRepository(db),
		MediaAsset:    NewMediaAssetRepository(db),
	}
}

// GetRepositories returns a singleton instance of all repositories
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetUserRepository returns the user repository instance
func (f *Factory) GetUserRepository() UserRepository {
	return f.GetRepositories().User
}

// GetLinkedAccountRepository returns the linked account repository instance
func (f *Factory) GetLinkedAccountRepository() LinkedAccountRepository {
	return f.GetRepositories().LinkedAccount
}

// GetContentItemRepository returns the content item repository instance
func (f *Factory) GetContentItemRepository() ContentItemRepository {
	return f.GetRepositories().ContentItem
}

// GetMediaAssetRepository returns the media asset repository instance
func (f *Factory) GetMediaAssetRepository() MediaAssetRepository {
	return f.GetRepositories().MediaAsset
}

var globalFactory *Factory
var factoryOnce sync.Once

// InitializeFactory initializes the global repository factory
func InitializeFactory(db *gorm.DB) {
	factoryOnce.Do(func() {
		globalFactory = NewFactory(db)
	})
}

// GetGlobalFactory returns the global repository factory instance
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// The materializer relies on this to resolve concurrent inserts of the
// same content hash.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
