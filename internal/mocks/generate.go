package mocks

//go:generate mockery --name QueryExecutor --srcpkg github.com/nsd23387/nsd-platform-shell-sub005/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
