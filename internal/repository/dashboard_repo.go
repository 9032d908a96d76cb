package repository

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"scopeboard/internal/models"
)

// ErrDashboardNotFound is returned when no document has the requested id
var ErrDashboardNotFound = errors.New("dashboard not found")

type DashboardRepo interface {
	// CreateDashboard stores a new dashboard document
	CreateDashboard(ctx context.Context, dashboard *models.Dashboard) error
	// GetDashboard gets a dashboard by id
	GetDashboard(ctx context.Context, id string) (*models.Dashboard, error)
	// UpdateDashboard replaces a dashboard document by id
	UpdateDashboard(ctx context.Context, dashboard *models.Dashboard) error
	// DeleteDashboard deletes a dashboard by id
	DeleteDashboard(ctx context.Context, id string) error
	// GetDashboards gets all dashboards
	GetDashboards(ctx context.Context) ([]*models.Dashboard, error)
}

func NewDashboardRepo(client *mongo.Client, databaseName, collectionName string) DashboardRepo {
	collection := client.Database(databaseName).Collection(collectionName)
	return &dashboardRepo{
		collection: collection,
	}
}

type dashboardRepo struct {
	collection *mongo.Collection
}

func (d *dashboardRepo) CreateDashboard(ctx context.Context, dashboard *models.Dashboard) error {
	_, err := d.collection.InsertOne(ctx, dashboard)
	return errors.Wrapf(err, "insert dashboard %s", dashboard.ID)
}

func (d *dashboardRepo) GetDashboard(ctx context.Context, id string) (*models.Dashboard, error) {
	var dashboard models.Dashboard
	err := d.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&dashboard)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrDashboardNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "find dashboard %s", id)
	}
	return &dashboard, nil
}

func (d *dashboardRepo) UpdateDashboard(ctx context.Context, dashboard *models.Dashboard) error {
	result, err := d.collection.ReplaceOne(ctx, bson.M{"_id": dashboard.ID}, dashboard, options.Replace().SetUpsert(false))
	if err != nil {
		return errors.Wrapf(err, "replace dashboard %s", dashboard.ID)
	}
	if result.MatchedCount == 0 {
		return ErrDashboardNotFound
	}
	return nil
}

func (d *dashboardRepo) DeleteDashboard(ctx context.Context, id string) error {
	result, err := d.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete dashboard %s", id)
	}
	if result.DeletedCount == 0 {
		return ErrDashboardNotFound
	}
	return nil
}

func (d *dashboardRepo) GetDashboards(ctx context.Context) ([]*models.Dashboard, error) {
	cursor, err := d.collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, errors.Wrap(err, "list dashboards")
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		err := cursor.Close(ctx)
		if err != nil {
			return
		}
	}(cursor, ctx)

	var dashboards []*models.Dashboard
	for cursor.Next(ctx) {
		var dashboard models.Dashboard
		if err := cursor.Decode(&dashboard); err != nil {
			return nil, errors.Wrap(err, "decode dashboard")
		}

		dashboards = append(dashboards, &dashboard)
	}

	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate dashboards")
	}

	return dashboards, nil
}
