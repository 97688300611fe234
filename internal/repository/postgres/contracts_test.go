package postgres

import (
	catalogdomain "github.com/remidosol/express-library-api/internal/domain/catalog"
	lendingdomain "github.com/remidosol/express-library-api/internal/domain/lending"
)

var (
	_ catalogdomain.BookRepository = (*BookRepository)(nil)
	_ catalogdomain.UserRepository = (*UserRepository)(nil)
	_ lendingdomain.Repository     = (*LedgerRepository)(nil)
	_ lendingdomain.BookStore      = (*BookRepository)(nil)
	_ lendingdomain.UserStore      = (*UserRepository)(nil)
)
