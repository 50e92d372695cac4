package sqlinline

const QInsertCharacter = `--sql d0dc85c6-f799-454e-aed6-0343009dd796
insert into ip_characters(
  id,
  user_id,
  name,
  main_image_url,
  source_task_id,
  merchandise_urls,
  created_at,
  updated_at
) values (
  $1::uuid,
  $2::text,
  $3::text,
  $4::text,
  nullif($5::text, '')::uuid,
  '{}'::jsonb,
  now(),
  now()
)
returning id::text, user_id, name, main_image_url, source_task_id::text, left_view_url, back_view_url, model_3d_url, merchandise_urls, created_at, updated_at;
`

const QSelectCharacterByID = `--sql 5566cedf-2bd0-4543-bfc6-0a02ca5a9b5b
select id::text, user_id, name, main_image_url, source_task_id::text, left_view_url, back_view_url, model_3d_url, merchandise_urls, created_at, updated_at
from ip_characters
where id = $1::uuid
limit 1;
`

const QListCharactersByUser = `--sql 3794b8de-bda6-4b95-87ed-e1ee709dc634
select id::text, user_id, name, main_image_url, source_task_id::text, left_view_url, back_view_url, model_3d_url, merchandise_urls, created_at, updated_at
from ip_characters
where user_id = $1::text
order by created_at desc;
`

const QSetCharacterLeftView = `--sql 67c04123-6a88-45f3-80b8-d517548633ba
update ip_characters
set left_view_url = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetCharacterBackView = `--sql ffbcdd74-4f0c-4da2-9e16-2d239c50391a
update ip_characters
set back_view_url = $2::text, updated_at = now()
where id = $1::uuid;
`

const QSetCharacterModel = `--sql eeda5031-e63e-4b2d-9c39-672453d5c2bb
update ip_characters
set model_3d_url = $2::text, updated_at = now()
where id = $1::uuid;
`

const QMergeCharacterMerchandise = `--sql 14041afa-efaf-47b5-b892-37106cbb2aaf
update ip_characters
set merchandise_urls = coalesce(merchandise_urls, '{}'::jsonb) || jsonb_build_object($2::text, $3::text),
    updated_at = now()
where id = $1::uuid;
`
