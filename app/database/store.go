package database

// Store exposes the feed and item repositories as one collaborator
type Store struct {
	*FeedRepository
	*ItemRepository
}

func NewStore(db *DB) *Store {
	return &Store{
		FeedRepository: NewFeedRepository(db),
		ItemRepository: NewItemRepository(db),
	}
}
