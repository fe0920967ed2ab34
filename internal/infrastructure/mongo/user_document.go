package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oksasatya/go-shop-account/internal/domain/entity"
	"github.com/oksasatya/go-shop-account/internal/domain/repository"
)

type avatarDocument struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
}

type addressDocument struct {
	ID          string `bson:"_id"`
	Country     string `bson:"country,omitempty"`
	City        string `bson:"city,omitempty"`
	Address1    string `bson:"address1,omitempty"`
	Address2    string `bson:"address2,omitempty"`
	ZipCode     int    `bson:"zipCode,omitempty"`
	AddressType string `bson:"addressType,omitempty"`
}

// userDocument is the stored shape of a user in the users collection.
type userDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	Name               string             `bson:"name"`
	Email              string             `bson:"email"`
	Password           string             `bson:"password,omitempty"`
	PhoneNumber        *int64             `bson:"phoneNumber,omitempty"`
	Addresses          []addressDocument  `bson:"addresses"`
	Role               string             `bson:"role"`
	Avatar             *avatarDocument    `bson:"avatar,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt"`
	ResetPasswordToken string             `bson:"resetPasswordToken,omitempty"`
	ResetPasswordTime  *time.Time         `bson:"resetPasswordTime,omitempty"`
}

// projectionFor hides the password unless it was asked for.
func projectionFor(o repository.ReadOptions) bson.M {
	if o.IncludePassword {
		return nil
	}
	return bson.M{"password": 0}
}

func toDocument(u *entity.User) (userDocument, error) {
	doc := userDocument{
		Name:               u.Name,
		Email:              u.Email,
		PhoneNumber:        u.PhoneNumber,
		Addresses:          make([]addressDocument, 0, len(u.Addresses)),
		Role:               u.Role,
		CreatedAt:          u.CreatedAt.UTC(),
		ResetPasswordToken: u.ResetPasswordToken,
		ResetPasswordTime:  u.ResetPasswordTime,
	}
	if u.ID != "" {
		oid, err := primitive.ObjectIDFromHex(u.ID)
		if err != nil {
			return userDocument{}, err
		}
		doc.ID = oid
	}
	if hash, ok := u.PasswordHash(); ok {
		doc.Password = hash
	}
	if u.Avatar != nil {
		doc.Avatar = &avatarDocument{PublicID: u.Avatar.PublicID, URL: u.Avatar.URL}
	}
	for _, a := range u.Addresses {
		doc.Addresses = append(doc.Addresses, addressDocument{
			ID:          a.ID,
			Country:     a.Country,
			City:        a.City,
			Address1:    a.Address1,
			Address2:    a.Address2,
			ZipCode:     a.ZipCode,
			AddressType: a.AddressType,
		})
	}
	return doc, nil
}

func fromDocument(doc userDocument) *entity.User {
	u := &entity.User{
		ID:                 doc.ID.Hex(),
		Name:               doc.Name,
		Email:              doc.Email,
		PhoneNumber:        doc.PhoneNumber,
		Role:               doc.Role,
		CreatedAt:          doc.CreatedAt,
		ResetPasswordToken: doc.ResetPasswordToken,
		ResetPasswordTime:  doc.ResetPasswordTime,
	}
	u.LoadPasswordHash(doc.Password)
	if doc.Avatar != nil {
		u.Avatar = &entity.Avatar{PublicID: doc.Avatar.PublicID, URL: doc.Avatar.URL}
	}
	for _, a := range doc.Addresses {
		u.Addresses = append(u.Addresses, entity.Address{
			ID:          a.ID,
			Country:     a.Country,
			City:        a.City,
			Address1:    a.Address1,
			Address2:    a.Address2,
			ZipCode:     a.ZipCode,
			AddressType: a.AddressType,
		})
	}
	return u
}

// updateSet builds the $set/$unset pair for an update. The password key is
// only present when the entity carries a hash.
func updateSet(doc userDocument) bson.M {
	set := bson.M{
		"name":      doc.Name,
		"email":     doc.Email,
		"addresses": doc.Addresses,
		"role":      doc.Role,
	}
	unset := bson.M{}
	if doc.Password != "" {
		set["password"] = doc.Password
	}
	if doc.PhoneNumber != nil {
		set["phoneNumber"] = doc.PhoneNumber
	} else {
		unset["phoneNumber"] = ""
	}
	if doc.Avatar != nil {
		set["avatar"] = doc.Avatar
	} else {
		unset["avatar"] = ""
	}
	if doc.ResetPasswordToken != "" {
		set["resetPasswordToken"] = doc.ResetPasswordToken
		set["resetPasswordTime"] = doc.ResetPasswordTime
	} else {
		unset["resetPasswordToken"] = ""
		unset["resetPasswordTime"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}
