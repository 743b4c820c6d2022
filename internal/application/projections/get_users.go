package projections

import (
	"context"

	accountstore "reliefportal/internal/adapters/storage/account"
	"reliefportal/internal/application/listutil"
	"reliefportal/internal/domain/account"
)

// GetUsersQuery carries input for the user directory projection.
type GetUsersQuery struct {
	Page listutil.PageParams
}

// GetUsersDeps holds dependencies for the user directory projection.
type GetUsersDeps struct {
	AccountStore AccountStore
	RoleStore    RoleStore
}

// UsersResult is one page of the user directory.
type UsersResult struct {
	Users []account.User
	Page  listutil.PageInfo
}

// QueryGetUsers returns one page of users with their roles, newest first.
// Unlike the dashboard section, a failed read is returned to the caller.
func QueryGetUsers(ctx context.Context, query GetUsersQuery, deps GetUsersDeps) (UsersResult, error) {
	total, err := deps.AccountStore.Count(ctx)
	if err != nil {
		return UsersResult{}, err
	}
	info := listutil.NewPageInfo(query.Page.Page, query.Page.PerPage, total)
	users, err := deps.AccountStore.List(ctx, accountstore.ListFilter{Limit: info.PerPage, Offset: info.Offset()})
	if err != nil {
		return UsersResult{}, err
	}
	assignments, err := deps.RoleStore.ListAll(ctx)
	if err != nil {
		return UsersResult{}, err
	}
	return UsersResult{Users: attachRoles(users, assignments), Page: info}, nil
}

// attachRoles fills each user's Roles from the assignment rows.
func attachRoles(users []account.User, assignments []account.RoleAssignment) []account.User {
	byUser := make(map[string][]account.Role)
	for _, a := range assignments {
		byUser[a.UserID] = append(byUser[a.UserID], a.Role)
	}
	out := make([]account.User, 0, len(users))
	for _, u := range users {
		u.Roles = account.SortByPrivilege(byUser[u.Account.ID])
		out = append(out, u)
	}
	return out
}
