package db

import (
	"context"
)

// seedBooks is the starter catalog inserted by Seed.
var seedBooks = []Book{
	{Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", Category: "Fiction", TotalCopies: 4},
	{Title: "To Kill a Mockingbird", Author: "Harper Lee", Category: "Fiction", TotalCopies: 3},
	{Title: "1984", Author: "George Orwell", Category: "Science Fiction", TotalCopies: 5},
	{Title: "Pride and Prejudice", Author: "Jane Austen", Category: "Romance", TotalCopies: 2},
	{Title: "The Catcher in the Rye", Author: "J. D. Salinger", Category: "Fiction", TotalCopies: 2},
	{Title: "The Hobbit", Author: "J. R. R. Tolkien", Category: "Fantasy", TotalCopies: 3},
	{Title: "The Alchemist", Author: "Paulo Coelho", Category: "Fiction", TotalCopies: 1},
	{Title: "The Art of War", Author: "Sun Tzu", Category: "Philosophy", TotalCopies: 1},
}

// Seed inserts the starter catalog when the books table is empty.
// It returns the number of books inserted.
func Seed(ctx context.Context, db *DB) (int, error) {
	var count int64
	if err := db.WithContext(ctx).Model(&Book{}).Count(&count).Error; err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	books := make([]Book, len(seedBooks))
	copy(books, seedBooks)
	for i := range books {
		books[i].AvailableCopies = books[i].TotalCopies
	}

	if err := db.WithContext(ctx).Create(&books).Error; err != nil {
		return 0, err
	}
	return len(books), nil
}
