package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/teamboard/teamboard/models"
	"github.com/teamboard/teamboard/store"
)

const teamGSI = "GSI_Team"

type DynamoTeamboardStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoTeamboardStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoTeamboardStore, error) {
	client, err := newDynamoDBClient(context.Background(), devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	tables, err := getTables(client, ctx)
	if err != nil {
		return nil, err
	}

	foundTable := false
	for _, table := range tables {
		if table == tableName {
			foundTable = true
			break
		}
	}
	if !foundTable {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoTeamboardStore{client: client, tableName: tableName}, nil
}

func (dynamoStore *DynamoTeamboardStore) GetUser(ctx context.Context, userId string) (models.User, error) {
	du, err := getItem[dynamoUser](dynamoStore, ctx, "USER#"+userId, "PROFILE", false)
	if err != nil {
		return models.User{}, err
	}
	return userFromDynamo(du), nil
}

func (dynamoStore *DynamoTeamboardStore) GetTeam(ctx context.Context, teamId string) (models.Team, error) {
	dt, err := getItem[dynamoTeam](dynamoStore, ctx, "TEAM#"+teamId, "PROFILE", false)
	if err != nil {
		return models.Team{}, err
	}
	return teamFromDynamo(dt), nil
}

// CreateIdea persists the idea exactly as given; the id and timestamps are
// assigned by the caller so mocked and real stores agree on them.
func (dynamoStore *DynamoTeamboardStore) CreateIdea(ctx context.Context, idea models.Idea) (models.Idea, error) {
	di := ideaToDynamo(idea)
	avMap, err := attributevalue.MarshalMap(di)
	if err != nil {
		return models.Idea{}, fmt.Errorf("marshal error: %w", err)
	}

	_, err = dynamoStore.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(dynamoStore.tableName),
		Item:                avMap,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return models.Idea{}, fmt.Errorf("failed to put idea: %w", err)
	}

	return idea, nil
}

// GetTeamIdeas returns the newest `limit` ideas for a team in chronological
// order (oldest first), mirroring the fetch-newest-then-reverse pattern the
// hydration cache merge relies on.
func (dynamoStore *DynamoTeamboardStore) GetTeamIdeas(ctx context.Context, teamId string, limit int32) ([]models.Idea, error) {
	dynamoIdeas, err := queryByTeamGSI[dynamoIdea](dynamoStore, ctx, teamId, "IDEA#", false, limit)
	if err != nil {
		return []models.Idea{}, err
	}

	ideas := make([]models.Idea, 0, len(dynamoIdeas))
	for i := len(dynamoIdeas) - 1; i >= 0; i-- {
		ideas = append(ideas, ideaFromDynamo(dynamoIdeas[i]))
	}

	return ideas, nil
}

func (dynamoStore *DynamoTeamboardStore) UpdateIdea(ctx context.Context, teamId string, ideaId string, updates models.IdeaUpdates) (models.Idea, error) {
	sets := map[string]types.AttributeValue{
		"UpdatedAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
	if updates.Title != nil {
		sets["Title"] = &types.AttributeValueMemberS{Value: *updates.Title}
	}
	if updates.Description != nil {
		sets["Description"] = &types.AttributeValueMemberS{Value: *updates.Description}
	}
	if updates.Category != nil {
		sets["Category"] = &types.AttributeValueMemberS{Value: *updates.Category}
	}

	di, err := updateOwnedItem[dynamoIdea](dynamoStore, ctx, "IDEA#"+ideaId, "META", teamId, sets, "")
	if err != nil {
		return models.Idea{}, err
	}
	return ideaFromDynamo(di), nil
}

// AddIdeaReaction atomically bumps one reaction counter and returns the
// post-increment idea. Increments commute, so concurrent reactions from
// different connections never lose updates.
func (dynamoStore *DynamoTeamboardStore) AddIdeaReaction(ctx context.Context, teamId string, ideaId string, reaction models.ReactionType) (models.Idea, error) {
	var counterField string
	switch reaction {
	case models.ReactionFire:
		counterField = "Fires"
	case models.ReactionHeart:
		counterField = "Hearts"
	case models.ReactionStar:
		counterField = "Stars"
	case models.ReactionVote:
		counterField = "Votes"
	default:
		return models.Idea{}, fmt.Errorf("unknown reaction type: %s", reaction)
	}

	sets := map[string]types.AttributeValue{
		"UpdatedAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}

	di, err := updateOwnedItem[dynamoIdea](dynamoStore, ctx, "IDEA#"+ideaId, "META", teamId, sets, counterField)
	if err != nil {
		return models.Idea{}, err
	}
	return ideaFromDynamo(di), nil
}

func (dynamoStore *DynamoTeamboardStore) DeleteIdea(ctx context.Context, teamId string, ideaId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, "IDEA#"+ideaId, "META", "TeamId", teamId)
}

// ClaimStickyNote establishes global ownership of a client-chosen noteId.
// Every field is written with if_not_exists, so a claim for an existing note
// changes nothing; the condition rejects claims against a note held by a
// different team with store.ErrConditionFailed. Returns the persisted note
// (the incoming one if newly created) and whether it was newly created.
func (dynamoStore *DynamoTeamboardStore) ClaimStickyNote(ctx context.Context, note models.StickyNote) (models.StickyNote, bool, error) {
	ds := stickyToDynamo(note)
	avMap, err := attributevalue.MarshalMap(ds)
	if err != nil {
		return models.StickyNote{}, false, fmt.Errorf("marshal error: %w", err)
	}

	updateExpr := "SET "
	exprAttrNames := make(map[string]string)
	exprAttrValues := make(map[string]types.AttributeValue)
	first := true
	for field, val := range avMap {
		if field == "PK" || field == "SK" {
			continue
		}
		if !first {
			updateExpr += ", "
		}
		first = false
		updateExpr += fmt.Sprintf("#%s = if_not_exists(#%s, :%s)", field, field, field)
		exprAttrNames["#"+field] = field
		exprAttrValues[":"+field] = val
	}
	exprAttrValues[":tid"] = &types.AttributeValueMemberS{Value: note.TeamId}

	out, err := dynamoStore.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(dynamoStore.tableName),
		Key: map[string]types.AttributeValue{
			"PK": avMap["PK"],
			"SK": avMap["SK"],
		},
		UpdateExpression:          aws.String(updateExpr),
		ExpressionAttributeNames:  exprAttrNames,
		ExpressionAttributeValues: exprAttrValues,
		ConditionExpression:       aws.String("attribute_not_exists(PK) OR TeamId = :tid"),
		ReturnValues:              types.ReturnValueAllOld,
	})
	if err != nil {
		var cce *types.ConditionalCheckFailedException
		if errors.As(err, &cce) {
			return models.StickyNote{}, false, store.ErrConditionFailed
		}
		return models.StickyNote{}, false, fmt.Errorf("claim sticky note failed: %w", err)
	}

	if len(out.Attributes) == 0 {
		return note, true, nil
	}

	var existing dynamoSticky
	if err := attributevalue.UnmarshalMap(out.Attributes, &existing); err != nil {
		return models.StickyNote{}, false, fmt.Errorf("failed to unmarshal existing sticky note: %w", err)
	}
	return stickyFromDynamo(existing), false, nil
}

func (dynamoStore *DynamoTeamboardStore) WriteStickyBatch(ctx context.Context, notes []models.StickyNote) ([]models.StickyNote, error) {
	var writeRequests []types.WriteRequest
	for _, note := range notes {
		ds := stickyToDynamo(note)
		avMap, err := attributevalue.MarshalMap(ds)
		if err != nil {
			return nil, fmt.Errorf("marshal error: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: avMap,
			},
		})
	}

	unprocessed, err := writeBatchRequests[dynamoSticky](dynamoStore, ctx, writeRequests)

	unbatchedNotes := make([]models.StickyNote, 0, len(unprocessed))
	for _, u := range unprocessed {
		unbatchedNotes = append(unbatchedNotes, stickyFromDynamo(u))
	}

	return unbatchedNotes, err
}

func (dynamoStore *DynamoTeamboardStore) GetTeamStickyNotes(ctx context.Context, teamId string) ([]models.StickyNote, error) {
	dynamoStickies, err := queryByTeamGSI[dynamoSticky](dynamoStore, ctx, teamId, "STICKY#", true, 0)
	if err != nil {
		return []models.StickyNote{}, err
	}

	notes := make([]models.StickyNote, 0, len(dynamoStickies))
	for _, ds := range dynamoStickies {
		notes = append(notes, stickyFromDynamo(ds))
	}

	return notes, nil
}

func (dynamoStore *DynamoTeamboardStore) DeleteStickyNote(ctx context.Context, noteId string, teamId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, "STICKY#"+noteId, "NOTE", "TeamId", teamId)
}

func (dynamoStore *DynamoTeamboardStore) DeleteTeamStickyNotes(ctx context.Context, teamId string) error {
	return batchDeleteByTeamGSIThrottled(dynamoStore, ctx, teamId, "STICKY#", 50*time.Millisecond)
}

func (dynamoStore *DynamoTeamboardStore) GetTeamStickyCount(ctx context.Context, teamId string) (int, error) {
	return countByTeamGSI(dynamoStore, ctx, teamId, "STICKY#")
}

func (dynamoStore *DynamoTeamboardStore) IncrementTeamStickyCount(ctx context.Context, teamId string, count int) error {
	// Lenient mode: the team profile row may not exist yet for freshly
	// seeded teams
	return incrementCounter(dynamoStore, ctx, "TEAM#"+teamId, "PROFILE", "StickyCount", count, true)
}
