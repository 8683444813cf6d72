package wacore

import (
	"context"

	"go.mau.fi/wacore/binary"
	"go.mau.fi/wacore/types"
)

// PrivacyCategory names one of the categories a privacy list governs.
type PrivacyCategory string

const (
	PrivacyLastSeen    PrivacyCategory = "last"
	PrivacyProfilePic  PrivacyCategory = "profile"
	PrivacyStatus      PrivacyCategory = "status"
	PrivacyReadReceipt PrivacyCategory = "readreceipts"
)

// PrivacyValue is who a PrivacyCategory is visible to.
type PrivacyValue string

const (
	PrivacyAll       PrivacyValue = "all"
	PrivacyContacts  PrivacyValue = "contacts"
	PrivacyNobody    PrivacyValue = "none"
)

// GetPrivacySettings fetches every category currently set on the account.
func (cli *Client) GetPrivacySettings(ctx context.Context) (map[PrivacyCategory]PrivacyValue, error) {
	res, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "privacy",
		Type:      iqGet,
		To:        types.ServerJID,
		Content:   []binary.Node{{Tag: "privacy"}},
	})
	if err != nil {
		return nil, err
	}
	privacy := res.GetChildByTag("privacy")
	out := make(map[PrivacyCategory]PrivacyValue)
	for _, category := range privacy.GetChildrenByTag("category") {
		out[PrivacyCategory(category.Attr("name"))] = PrivacyValue(category.Attr("value"))
	}
	return out, nil
}

// SetPrivacySetting sets category to value.
func (cli *Client) SetPrivacySetting(ctx context.Context, category PrivacyCategory, value PrivacyValue) error {
	_, err := cli.sendIQ(ctx, infoQuery{
		Namespace: "privacy",
		Type:      iqSet,
		To:        types.ServerJID,
		Content: []binary.Node{
			{
				Tag: "privacy",
				Children: []binary.Node{
					{Tag: "category", Attrs: binary.AttrsFrom("name", string(category), "value", string(value))},
				},
			},
		},
	})
	return err
}
