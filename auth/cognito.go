package auth

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/mwang-dev/friendfeed/model"
	"github.com/pkg/errors"
)

// CognitoProvider implements Provider on AWS Cognito. The client is thread
// safe and performs user authorization based on bearer access tokens.
type CognitoProvider struct {
	client   *cognitoidentityprovider.Client
	clientId string
}

var _ Provider = (*CognitoProvider)(nil)

// NewCognitoProvider creates a provider with aws config located in path
// ~/.aws/config. The app client id is read from COGNITO_CLIENT_ID.
func NewCognitoProvider(ctx context.Context) (*CognitoProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &CognitoProvider{
		client:   cognitoidentityprovider.NewFromConfig(cfg),
		clientId: os.Getenv("COGNITO_CLIENT_ID"),
	}, nil
}

func (p *CognitoProvider) Register(ctx context.Context, email, password, name string) (string, error) {
	nameAttr := "name"
	out, err := p.client.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId: &p.clientId,
		Username: &email,
		Password: &password,
		UserAttributes: []types.AttributeType{
			{Name: &nameAttr, Value: &name},
		},
	})
	if err != nil {
		var exists *types.UsernameExistsException
		if errors.As(err, &exists) {
			return "", errors.Wrapf(model.ErrConflict, "this email is already registered: %s", email)
		}
		return "", errors.Wrap(model.ErrUnavailable, err.Error())
	}
	if out.UserSub == nil {
		return "", errors.Wrap(model.ErrUnavailable, "identity provider returned no user id")
	}
	return *out.UserSub, nil
}

func (p *CognitoProvider) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	out, err := p.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{AccessToken: &token})
	if err != nil {
		return nil, errors.Wrap(model.ErrUnauthenticated, err.Error())
	}

	ident := &Identity{}
	if out.Username != nil {
		ident.Uid = *out.Username
	}
	for _, attr := range out.UserAttributes {
		if attr.Name == nil || attr.Value == nil {
			continue
		}
		switch *attr.Name {
		case "sub":
			ident.Uid = *attr.Value
		case "email":
			ident.Email = *attr.Value
		case "name":
			ident.DisplayName = *attr.Value
		}
	}
	if ident.Uid == "" {
		return nil, errors.Wrap(model.ErrUnauthenticated, "token carries no user id")
	}
	return ident, nil
}
