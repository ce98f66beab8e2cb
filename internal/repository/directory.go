package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/clinic-scheduling/internal/model"
)

// GormDirectory отвечает на вопрос «существует ли и активен ли участник записи».
type GormDirectory struct {
	users     UserRepository
	providers ProviderRepository
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{
		users:     NewGormUserRepository(db),
		providers: NewGormProviderRepository(db),
	}
}

func (d *GormDirectory) FindActiveUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return d.users.FindActiveByID(ctx, id)
}

func (d *GormDirectory) FindActiveProviderByID(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	return d.providers.FindActiveByID(ctx, id)
}
