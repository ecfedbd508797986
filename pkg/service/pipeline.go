package service

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserFilterQuery selects users and, per user, the products they requested.
type UserFilterQuery struct {
	// Email is matched as a case-insensitive substring. Required.
	Email string
	// UserID matches exactly when non-zero.
	UserID int64
	// Name is matched as a case-insensitive substring when set.
	Name string
	// Mobile matches exactly when set.
	Mobile string
	// ProductName narrows the joined products by case-insensitive substring when set.
	ProductName string
}

func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// UserProductsPipeline builds match, lookup, count, project and sort stages over users.
// Inputs are quoted before they reach $regex, so they match literally.
func UserProductsPipeline(q UserFilterQuery) mongo.Pipeline {
	match := bson.D{{Key: "email", Value: containsFold(q.Email)}}
	if q.UserID != 0 {
		match = append(match, bson.E{Key: "userId", Value: q.UserID})
	}
	if q.Name != "" {
		match = append(match, bson.E{Key: "name", Value: containsFold(q.Name)})
	}
	if q.Mobile != "" {
		match = append(match, bson.E{Key: "mobile", Value: q.Mobile})
	}

	joined := bson.A{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$expr", Value: bson.D{{Key: "$eq", Value: bson.A{"$requestedBy", "$$userEmail"}}}},
		}}},
	}
	if q.ProductName != "" {
		joined = append(joined, bson.D{{Key: "$match", Value: bson.D{
			{Key: "productName", Value: containsFold(q.ProductName)},
		}}})
	}

	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: productsCollection},
			{Key: "let", Value: bson.D{{Key: "userEmail", Value: "$email"}}},
			{Key: "pipeline", Value: joined},
			{Key: "as", Value: "products"},
		}}},
		{{Key: "$addFields", Value: bson.D{
			{Key: "productCount", Value: bson.D{{Key: "$size", Value: "$products"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "userId", Value: 1},
			{Key: "name", Value: 1},
			{Key: "email", Value: 1},
			{Key: "mobile", Value: 1},
			{Key: "createdAt", Value: 1},
			{Key: "productCount", Value: 1},
			{Key: "products", Value: bson.D{
				{Key: "productName", Value: 1},
				{Key: "productId", Value: 1},
				{Key: "amount", Value: 1},
				{Key: "createdAt", Value: 1},
			}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
}
